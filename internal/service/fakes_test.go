package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"field-ticket-service/internal/events"
	"field-ticket-service/internal/model"
	"field-ticket-service/internal/repository"
	"field-ticket-service/internal/status"
	"field-ticket-service/internal/storage"
	"field-ticket-service/internal/upload"
)

// memDB backs every store interface with maps.
type memDB struct {
	mu          sync.Mutex
	tickets     map[uuid.UUID]*model.Ticket
	deleted     map[uuid.UUID]bool
	users       map[uuid.UUID]*model.User
	assignments []model.TicketAssignment
	activities  []model.Activity
	attachments []model.Attachment
	visits      []*model.VisitSchedule
	history     []model.StatusHistory
	parts       []model.TicketPart
	files       map[string][]byte
	claims      map[string]int
}

func newMemDB() *memDB {
	return &memDB{
		tickets: map[uuid.UUID]*model.Ticket{},
		deleted: map[uuid.UUID]bool{},
		users:   map[uuid.UUID]*model.User{},
		files:   map[string][]byte{},
		claims:  map[string]int{},
	}
}

type memTickets struct{ db *memDB }

func (s memTickets) Create(_ context.Context, t *model.Ticket) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	cp := *t
	s.db.tickets[t.ID] = &cp
	return nil
}

func (s memTickets) GetByID(_ context.Context, id uuid.UUID) (*model.Ticket, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tickets[id]
	if !ok || s.db.deleted[id] {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *t
	return &cp, nil
}

func (s memTickets) Update(_ context.Context, t *model.Ticket) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	cp := *t
	cp.AssignedUser, cp.Creator = nil, nil
	s.db.tickets[t.ID] = &cp
	return nil
}

func (s memTickets) Delete(_ context.Context, id uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.tickets[id]; !ok || s.db.deleted[id] {
		return gorm.ErrRecordNotFound
	}
	s.db.deleted[id] = true
	return nil
}

func (s memTickets) List(_ context.Context, f repository.TicketListFilter) ([]model.Ticket, int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.Ticket
	for id, t := range s.db.tickets {
		if s.db.deleted[id] {
			continue
		}
		if f.AssignedTo != nil && (t.AssignedTo == nil || *t.AssignedTo != *f.AssignedTo) {
			continue
		}
		if f.CreatedBy != nil && t.CreatedBy != *f.CreatedBy {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, t) {
			continue
		}
		if len(f.IDs) > 0 && !containsID(f.IDs, id) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketNumber < out[j].TicketNumber })
	total := int64(len(out))
	if f.Limit > 0 {
		end := min(f.Offset+f.Limit, len(out))
		if f.Offset >= len(out) {
			return []model.Ticket{}, total, nil
		}
		out = out[f.Offset:end]
	}
	return out, total, nil
}

func containsStatus(list []status.Status, t *model.Ticket) bool {
	for _, s := range list {
		if s == t.Status {
			return true
		}
	}
	return false
}

func containsID(list []uuid.UUID, id uuid.UUID) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

type memUsers struct{ db *memDB }

func (s memUsers) Create(_ context.Context, u *model.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.users {
		if existing.Email == u.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	cp := *u
	s.db.users[u.ID] = &cp
	return nil
}

func (s memUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (s memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s memUsers) ListByRole(_ context.Context, role model.UserRole) ([]model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.User
	for _, u := range s.db.users {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	return out, nil
}

type memAssignments struct{ db *memDB }

func (s memAssignments) Create(_ context.Context, a *model.TicketAssignment) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a.ID = uuid.New()
	s.db.assignments = append(s.db.assignments, *a)
	return nil
}

func (s memAssignments) DeactivateActive(_ context.Context, ticketID uuid.UUID, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for i := range s.db.assignments {
		a := &s.db.assignments[i]
		if a.TicketID == ticketID && a.IsActive {
			a.IsActive = false
			a.UnassignedAt = &at
		}
	}
	return nil
}

func (s memAssignments) ListByTicketID(_ context.Context, ticketID uuid.UUID) ([]model.TicketAssignment, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.TicketAssignment
	for _, a := range s.db.assignments {
		if a.TicketID == ticketID {
			out = append(out, a)
		}
	}
	return out, nil
}

type memActivities struct{ db *memDB }

func (s memActivities) Create(_ context.Context, a *model.Activity) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.activities {
		if existing.TicketID == a.TicketID && existing.VisitNumber == a.VisitNumber && existing.ActivityType == a.ActivityType {
			return gorm.ErrDuplicatedKey
		}
	}
	a.ID = uuid.New()
	s.db.activities = append(s.db.activities, *a)
	return nil
}

func (s memActivities) ListByTicketID(_ context.Context, ticketID uuid.UUID) ([]model.Activity, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.Activity
	for _, a := range s.db.activities {
		if a.TicketID == ticketID {
			out = append(out, a)
		}
	}
	return out, nil
}

type memAttachments struct{ db *memDB }

func (s memAttachments) Create(_ context.Context, a *model.Attachment) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a.ID = uuid.New()
	s.db.attachments = append(s.db.attachments, *a)
	return nil
}

func (s memAttachments) PathReferenced(_ context.Context, path string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, a := range s.db.attachments {
		if a.Path == path {
			return true, nil
		}
	}
	return false, nil
}

func (s memAttachments) ListByTicketID(_ context.Context, ticketID uuid.UUID) ([]model.Attachment, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.Attachment
	for _, a := range s.db.attachments {
		if a.TicketID == ticketID {
			out = append(out, a)
		}
	}
	return out, nil
}

type memVisits struct{ db *memDB }

func (s memVisits) Create(_ context.Context, v *model.VisitSchedule) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.visits {
		if existing.TicketID == v.TicketID && existing.VisitNumber == v.VisitNumber {
			return gorm.ErrDuplicatedKey
		}
	}
	v.ID = uuid.New()
	cp := *v
	s.db.visits = append(s.db.visits, &cp)
	return nil
}

func (s memVisits) Update(_ context.Context, v *model.VisitSchedule) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for i, existing := range s.db.visits {
		if existing.ID == v.ID {
			cp := *v
			s.db.visits[i] = &cp
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (s memVisits) ListByTicketID(_ context.Context, ticketID uuid.UUID) ([]model.VisitSchedule, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.VisitSchedule
	for _, v := range s.db.visits {
		if v.TicketID == ticketID {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VisitNumber < out[j].VisitNumber })
	return out, nil
}

type memHistory struct{ db *memDB }

func (s memHistory) Create(_ context.Context, h *model.StatusHistory) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	h.ID = uuid.New()
	h.CreatedAt = time.Now()
	s.db.history = append(s.db.history, *h)
	return nil
}

func (s memHistory) ListByTicketID(_ context.Context, ticketID uuid.UUID) ([]model.StatusHistory, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.StatusHistory
	for _, h := range s.db.history {
		if h.TicketID == ticketID {
			out = append(out, h)
		}
	}
	return out, nil
}

type memParts struct{ db *memDB }

func (s memParts) Create(_ context.Context, p *model.TicketPart) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p.ID = uuid.New()
	s.db.parts = append(s.db.parts, *p)
	return nil
}

func (s memParts) ListByTicketID(_ context.Context, ticketID uuid.UUID) ([]model.TicketPart, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.TicketPart
	for _, p := range s.db.parts {
		if p.TicketID == ticketID {
			out = append(out, p)
		}
	}
	return out, nil
}

type memFiles struct{ db *memDB }

func (s memFiles) Save(_ context.Context, name string, data []byte) (*storage.Stored, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	digest := storage.Digest(data)
	path := "2024/01/" + digest + ".jpg"
	_, exists := s.db.files[path]
	s.db.files[path] = data
	s.db.claims[path]++
	return &storage.Stored{Path: path, URL: "/storage/" + path, Digest: digest, Size: int64(len(data)), Created: !exists}, nil
}

func (s memFiles) Release(path string) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.claims[path]--
}

func (s memFiles) Discard(path string, referenced func() (bool, error)) (bool, error) {
	s.db.mu.Lock()
	s.db.claims[path]--
	claimed := s.db.claims[path] > 0
	s.db.mu.Unlock()
	if claimed {
		return false, nil
	}
	inUse, err := referenced()
	if err != nil || inUse {
		return false, err
	}
	s.db.mu.Lock()
	delete(s.db.files, path)
	s.db.mu.Unlock()
	return true, nil
}

type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// memStager keeps previews in memory and counts releases.
type memStager struct {
	mu       sync.Mutex
	released int
}

func (s *memStager) Stage(name string, data []byte) (*upload.Preview, error) {
	return upload.NewPreview("mem://"+name, func() ([]byte, error) { return data, nil }, func() error {
		s.mu.Lock()
		s.released++
		s.mu.Unlock()
		return nil
	}), nil
}

func (s *memStager) Released() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

type fixture struct {
	db          *memDB
	stores      Stores
	events      *events.Recorder
	stager      *memStager
	tickets     *TicketService
	assignments *AssignmentService
	timeline    *TimelineService
	parts       *PartService
	bulk        *BulkService

	admin     model.Principal
	engineer  model.Principal
	engineer2 model.Principal
	requester model.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newMemDB()
	recorder := &events.Recorder{}
	stores := Stores{
		Tickets:     memTickets{db},
		Users:       memUsers{db},
		Assignments: memAssignments{db},
		Activities:  memActivities{db},
		Attachments: memAttachments{db},
		Visits:      memVisits{db},
		History:     memHistory{db},
		Parts:       memParts{db},
		Tx:          passthroughTx{},
		Files:       memFiles{db},
		Events:      recorder,
	}
	stager := &memStager{}
	log := zerolog.Nop()
	tickets := NewTicketService(stores, log)
	assignments := NewAssignmentService(stores, tickets, log)

	f := &fixture{
		db:          db,
		stores:      stores,
		events:      recorder,
		stager:      stager,
		tickets:     tickets,
		assignments: assignments,
		timeline:    NewTimelineService(stores, upload.NewProcessor(upload.Policy{MaxBytes: 1 << 20, Quality: 80}, stager), log),
		parts:       NewPartService(stores),
		bulk:        NewBulkService(tickets, assignments),
	}
	f.admin = f.addUser(t, "Ada Admin", model.UserRoleAdmin)
	f.engineer = f.addUser(t, "Eli Engineer", model.UserRoleEngineer)
	f.engineer2 = f.addUser(t, "Eve Engineer", model.UserRoleEngineer)
	f.requester = f.addUser(t, "Rui Requester", model.UserRoleRequester)
	return f
}

func (f *fixture) addUser(t *testing.T, name string, role model.UserRole) model.Principal {
	t.Helper()
	user := &model.User{Name: name, Email: uuid.NewString() + "@example.com", Role: role}
	if err := f.stores.Users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return model.Principal{UserID: user.ID, Name: name, Role: role}
}

// newAssignedTicket creates a ticket as the requester and assigns it to the first engineer.
func (f *fixture) newAssignedTicket(t *testing.T) *model.Ticket {
	t.Helper()
	ctx := context.Background()
	ticket, err := f.tickets.Create(ctx, f.requester, CreateTicketInput{Company: "Acme", Problem: "Pump fails"})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	ticket, err = f.assignments.Assign(ctx, f.admin, ticket.ID, AssignInput{EngineerID: f.engineer.UserID})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	return ticket
}

func (f *fixture) ticket(t *testing.T, id uuid.UUID) *model.Ticket {
	t.Helper()
	ticket, err := f.stores.Tickets.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load ticket: %v", err)
	}
	return ticket
}

func (f *fixture) historyFor(id uuid.UUID) []model.StatusHistory {
	out, _ := f.stores.History.ListByTicketID(context.Background(), id)
	return out
}

func pngFile(t *testing.T, name string) upload.File {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.NRGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	data := buf.Bytes()
	return upload.File{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

func textFile(name string) upload.File {
	data := []byte("just some text, not a picture")
	return upload.File{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}
