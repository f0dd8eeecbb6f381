package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"field-ticket-service/internal/model"
	"field-ticket-service/internal/status"
	"field-ticket-service/internal/utils"
)

type TicketRepository struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

func (r *TicketRepository) Create(ctx context.Context, ticket *model.Ticket) error {
	return conn(ctx, r.db).Create(ticket).Error
}

func (r *TicketRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	var ticket model.Ticket
	err := conn(ctx, r.db).
		Preload("AssignedUser").
		Preload("Creator").
		Where("id = ?", id).
		First(&ticket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

func (r *TicketRepository) Update(ctx context.Context, ticket *model.Ticket) error {
	return conn(ctx, r.db).Omit("AssignedUser", "Creator").Save(ticket).Error
}

// Delete is a soft delete.
func (r *TicketRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := conn(ctx, r.db).Where("id = ?", id).Delete(&model.Ticket{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type TicketListFilter struct {
	Search     string
	Statuses   []status.Status
	Priority   *status.Priority
	AssignedTo *uuid.UUID
	CreatedBy  *uuid.UUID
	DateFrom   *time.Time
	DateTo     *time.Time
	IDs        []uuid.UUID
	// Limit 0 returns every match.
	Limit  int
	Offset int
}

func (r *TicketRepository) List(ctx context.Context, filter TicketListFilter) ([]model.Ticket, int64, error) {
	query := applyTicketFilter(conn(ctx, r.db).Model(&model.Ticket{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tickets []model.Ticket
	query = query.Preload("AssignedUser").Order("tickets.created_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}
	if err := query.Find(&tickets).Error; err != nil {
		return nil, 0, err
	}

	return tickets, total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// containsPattern matches search literally anywhere in a column.
func containsPattern(search string) string {
	return "%" + likeEscaper.Replace(search) + "%"
}

func applyTicketFilter(query *gorm.DB, filter TicketListFilter) *gorm.DB {
	if utils.LooksLikeTicketNumber(filter.Search) {
		query = query.Where("tickets.ticket_number = ?", strings.ToUpper(filter.Search))
	} else if filter.Search != "" {
		like := containsPattern(filter.Search)
		query = query.Where(
			`tickets.ticket_number ILIKE ? ESCAPE '\' OR tickets.case_id ILIKE ? ESCAPE '\' OR tickets.company ILIKE ? ESCAPE '\' OR tickets.serial_number ILIKE ? ESCAPE '\' OR tickets.problem ILIKE ? ESCAPE '\'`,
			like, like, like, like, like,
		)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("tickets.status IN ?", filter.Statuses)
	}
	if filter.Priority != nil {
		query = query.Where("tickets.priority = ?", *filter.Priority)
	}
	if filter.AssignedTo != nil {
		query = query.Where("tickets.assigned_to = ?", *filter.AssignedTo)
	}
	if filter.CreatedBy != nil {
		query = query.Where("tickets.created_by = ?", *filter.CreatedBy)
	}
	if filter.DateFrom != nil {
		query = query.Where("tickets.created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("tickets.created_at < ?", *filter.DateTo)
	}
	if len(filter.IDs) > 0 {
		query = query.Where("tickets.id IN ?", filter.IDs)
	}
	return query
}
