// Package listview carries what list screens need from the server:
// pagination metadata, bulk selection state and CSV export.
package listview

import (
	"net/url"
	"strconv"
)

const (
	DefaultPerPage = 15
	MaxPerPage     = 100
)

type Links struct {
	First string  `json:"first"`
	Last  string  `json:"last"`
	Prev  *string `json:"prev"`
	Next  *string `json:"next"`
}

type Meta struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	LastPage    int   `json:"last_page"`
	From        int64 `json:"from"`
	To          int64 `json:"to"`
	Links       Links `json:"links"`
}

type Page[T any] struct {
	Data      []T            `json:"data"`
	Meta      Meta           `json:"meta"`
	Selection *SelectionView `json:"selection,omitempty"`
}

// Request is a normalized page/per_page pair.
type Request struct {
	Page    int
	PerPage int
}

func ParseRequest(values url.Values) Request {
	page, _ := strconv.Atoi(values.Get("page"))
	perPage, _ := strconv.Atoi(values.Get("per_page"))
	return Request{Page: page, PerPage: perPage}.Normalize()
}

func (r Request) Normalize() Request {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PerPage < 1 {
		r.PerPage = DefaultPerPage
	}
	if r.PerPage > MaxPerPage {
		r.PerPage = MaxPerPage
	}
	return r
}

func (r Request) Offset() int {
	return (r.Page - 1) * r.PerPage
}

// BuildMeta computes pagination metadata; links keep every other query
// parameter of base so filters survive navigation.
func BuildMeta(base *url.URL, req Request, total int64) Meta {
	req = req.Normalize()
	lastPage := int((total + int64(req.PerPage) - 1) / int64(req.PerPage))
	if lastPage < 1 {
		lastPage = 1
	}

	meta := Meta{
		CurrentPage: req.Page,
		PerPage:     req.PerPage,
		Total:       total,
		LastPage:    lastPage,
	}
	if total > 0 && int64(req.Offset()) < total {
		meta.From = int64(req.Offset()) + 1
		meta.To = min(int64(req.Offset()+req.PerPage), total)
	}

	meta.Links.First = pageURL(base, 1, req.PerPage)
	meta.Links.Last = pageURL(base, lastPage, req.PerPage)
	if req.Page > 1 {
		prev := pageURL(base, min(req.Page-1, lastPage), req.PerPage)
		meta.Links.Prev = &prev
	}
	if req.Page < lastPage {
		next := pageURL(base, req.Page+1, req.PerPage)
		meta.Links.Next = &next
	}
	return meta
}

func pageURL(base *url.URL, page, perPage int) string {
	u := url.URL{Path: "/"}
	if base != nil {
		u = *base
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	u.RawQuery = q.Encode()
	return u.RequestURI()
}
