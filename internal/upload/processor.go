package upload

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

type Processor struct {
	policy Policy
	stager Stager
}

func NewProcessor(policy Policy, stager Stager) *Processor {
	return &Processor{policy: policy.normalized(), stager: stager}
}

func (p *Processor) Policy() Policy {
	return p.policy
}

// Process validates and transcodes every file independently. Rejected files
// are reported and skipped; the rest of the batch is still accepted.
func (p *Processor) Process(files []File) (*PendingSet, []Rejection) {
	set := &PendingSet{}
	var rejections []Rejection

	for _, f := range files {
		pending, rejection := p.processOne(f)
		if rejection != nil {
			rejections = append(rejections, *rejection)
			continue
		}
		set.add(pending)
	}
	return set, rejections
}

func (p *Processor) processOne(f File) (*Pending, *Rejection) {
	reject := func(reason Reason, format string, args ...any) (*Pending, *Rejection) {
		return nil, &Rejection{Name: f.Name, Reason: reason, Message: fmt.Sprintf(format, args...)}
	}

	if f.Size > p.policy.MaxBytes {
		return reject(ReasonSize, "%s exceeds the %s limit", f.Name, formatBytes(p.policy.MaxBytes))
	}
	if f.Open == nil {
		return reject(ReasonRead, "%s could not be opened", f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return reject(ReasonRead, "%s could not be opened", f.Name)
	}
	data, err := io.ReadAll(io.LimitReader(rc, p.policy.MaxBytes+1))
	rc.Close()
	if err != nil {
		return reject(ReasonRead, "%s could not be read", f.Name)
	}
	if int64(len(data)) > p.policy.MaxBytes {
		return reject(ReasonSize, "%s exceeds the %s limit", f.Name, formatBytes(p.policy.MaxBytes))
	}

	detected := DetectContentType(data)
	if !isImage(detected) {
		return reject(ReasonType, "%s is not an image (%s)", f.Name, detected)
	}

	converted, err := Transcode(data, p.policy.Quality, p.policy.MaxPixels)
	if err != nil {
		if errors.Is(err, errNotImage) {
			return reject(ReasonType, "%s is not an image", f.Name)
		}
		if errors.Is(err, errTooLarge) {
			return reject(ReasonSize, "%s exceeds the %d megapixel limit", f.Name, p.policy.MaxPixels/1_000_000)
		}
		return reject(ReasonConversion, "%s could not be converted", f.Name)
	}

	name := OutputName(f.Name)
	preview, err := p.stager.Stage(name, converted)
	if err != nil {
		return reject(ReasonConversion, "%s could not be staged", f.Name)
	}

	return &Pending{
		ID:          uuid.New(),
		Original:    Original{Name: f.Name, Size: int64(len(data)), ContentType: detected},
		Name:        name,
		ContentType: OutputContentType,
		Size:        len(converted),
		Staged:      preview.Key,
		preview:     preview,
	}, nil
}

func formatBytes(n int64) string {
	const mb = 1 << 20
	if n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	return fmt.Sprintf("%d bytes", n)
}
