package helpdesk

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const defaultSearchLimit = 50

// PGStore is the Postgres-backed Store.
type PGStore struct {
	db *bun.DB
}

// OpenPG connects to Postgres via DSN and verifies the connection.
func OpenPG(ctx context.Context, dsn string) (*PGStore, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("helpdesk: connect postgres: %w", err)
	}
	return &PGStore{db: db}, nil
}

// NewPGStore wraps an existing bun handle. Used by tests with a stub driver.
func NewPGStore(db *bun.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Close() error {
	return s.db.Close()
}

// CreateSchema creates the helpdesk tables when they do not exist yet.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	models := []any{
		(*Category)(nil),
		(*Product)(nil),
		(*Customer)(nil),
		(*Agent)(nil),
		(*Ticket)(nil),
		(*TicketComment)(nil),
		(*KBArticle)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("helpdesk: create table for %T: %w", model, err)
		}
	}
	return nil
}

func (s *PGStore) SearchTickets(ctx context.Context, filter TicketFilter) ([]Ticket, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	q := s.db.NewSelect().
		Model((*Ticket)(nil)).
		ColumnExpr("t.*").
		ColumnExpr("c.first_name || ' ' || c.last_name AS customer_name").
		ColumnExpr("c.email AS customer_email").
		ColumnExpr("a.first_name || ' ' || a.last_name AS agent_name").
		ColumnExpr("cat.name AS category_name").
		ColumnExpr("p.product_line").
		ColumnExpr("p.model").
		Join("LEFT JOIN customers AS c ON t.customer_id = c.id").
		Join("LEFT JOIN agents AS a ON t.agent_id = a.id").
		Join("LEFT JOIN categories AS cat ON t.category_id = cat.id").
		Join("LEFT JOIN products AS p ON t.product_id = p.id")

	if filter.CustomerEmail != "" {
		q = q.Where("c.email ILIKE ?", "%"+filter.CustomerEmail+"%")
	}
	if filter.AgentID != 0 {
		q = q.Where("t.agent_id = ?", filter.AgentID)
	}
	if filter.Status != "" {
		q = q.Where("t.status = ?", filter.Status)
	}
	if filter.Priority != "" {
		q = q.Where("t.priority = ?", filter.Priority)
	}
	if filter.Category != "" {
		q = q.Where("cat.name ILIKE ?", "%"+filter.Category+"%")
	}
	if filter.ProductLine != "" {
		q = q.Where("p.product_line ILIKE ?", "%"+filter.ProductLine+"%")
	}
	if filter.FreeText != "" {
		pattern := "%" + filter.FreeText + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("t.subject ILIKE ?", pattern).
				WhereOr("t.description ILIKE ?", pattern)
		})
	}

	var tickets []Ticket
	if err := q.OrderExpr("t.created_at DESC").Limit(limit).Scan(ctx, &tickets); err != nil {
		return nil, fmt.Errorf("helpdesk: search tickets: %w", err)
	}
	return tickets, nil
}

func (s *PGStore) SearchKnowledgeBase(ctx context.Context, term string, categoryID int64, limit int) ([]KBArticle, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + term + "%"

	q := s.db.NewSelect().
		Model((*KBArticle)(nil)).
		ColumnExpr("kb.*").
		ColumnExpr("cat.name AS category_name").
		ColumnExpr("a.first_name || ' ' || a.last_name AS author_name").
		Join("LEFT JOIN categories AS cat ON kb.category_id = cat.id").
		Join("LEFT JOIN agents AS a ON kb.created_by = a.id").
		Where("kb.is_published = TRUE").
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("kb.title ILIKE ?", pattern).
				WhereOr("kb.content ILIKE ?", pattern).
				WhereOr("kb.tags ILIKE ?", pattern)
		})
	if categoryID != 0 {
		q = q.Where("kb.category_id = ?", categoryID)
	}

	var articles []KBArticle
	err := q.OrderExpr("kb.view_count DESC, kb.updated_at DESC").Limit(limit).Scan(ctx, &articles)
	if err != nil {
		return nil, fmt.Errorf("helpdesk: search knowledge base: %w", err)
	}
	return articles, nil
}

func (s *PGStore) CustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	customer := new(Customer)
	err := s.db.NewSelect().Model(customer).Where("email = ?", email).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("helpdesk: customer by email: %w", err)
	}
	return customer, nil
}

func (s *PGStore) AgentWorkload(ctx context.Context, agentID int64) (*Workload, error) {
	agent := new(Agent)
	err := s.db.NewSelect().Model(agent).Where("id = ?", agentID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("helpdesk: load agent: %w", err)
	}

	var buckets []WorkloadBucket
	err = s.db.NewSelect().
		Model((*Ticket)(nil)).
		ColumnExpr("t.status").
		ColumnExpr("t.priority").
		ColumnExpr("COUNT(*) AS count").
		Where("t.agent_id = ?", agentID).
		Where("t.status IN (?)", bun.In([]string{"Open", "In Progress", "Pending"})).
		GroupExpr("t.status, t.priority").
		Scan(ctx, &buckets)
	if err != nil {
		return nil, fmt.Errorf("helpdesk: agent workload: %w", err)
	}

	total := 0
	for _, b := range buckets {
		total += b.Count
	}
	return &Workload{Agent: agent, Workload: buckets, TotalActiveTickets: total}, nil
}

func (s *PGStore) CreateTicket(ctx context.Context, t NewTicket) (string, error) {
	year := time.Now().UTC().Year()
	prefix := fmt.Sprintf("APL-%d-", year)

	count, err := s.db.NewSelect().
		Model((*Ticket)(nil)).
		Where("ticket_number LIKE ?", prefix+"%").
		Count(ctx)
	if err != nil {
		return "", fmt.Errorf("helpdesk: count tickets: %w", err)
	}

	priority := t.Priority
	if priority == "" {
		priority = "Medium"
	}
	ticket := &Ticket{
		TicketNumber: fmt.Sprintf("%s%03d", prefix, count+1),
		CustomerID:   t.CustomerID,
		CategoryID:   t.CategoryID,
		ProductID:    t.ProductID,
		Subject:      t.Subject,
		Description:  t.Description,
		Priority:     priority,
		Status:       "Open",
		SerialNumber: t.SerialNumber,
		OSVersion:    t.OSVersion,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(ticket).Exec(ctx); err != nil {
		return "", fmt.Errorf("helpdesk: create ticket: %w", err)
	}
	return ticket.TicketNumber, nil
}

func (s *PGStore) UpdateTicketStatus(ctx context.Context, u TicketUpdate) (bool, error) {
	now := time.Now().UTC()
	q := s.db.NewUpdate().
		Model((*Ticket)(nil)).
		Set("status = ?", u.Status).
		Set("updated_at = ?", now).
		Where("id = ?", u.TicketID)

	if u.AgentID != nil {
		q = q.Set("agent_id = ?", *u.AgentID)
	}
	if u.Resolution != "" {
		q = q.Set("resolution = ?", u.Resolution)
	}
	switch u.Status {
	case "Resolved":
		q = q.Set("resolved_at = ?", now)
	case "Closed":
		q = q.Set("closed_at = ?", now)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("helpdesk: update ticket status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("helpdesk: update ticket status result: %w", err)
	}
	return affected > 0, nil
}

func (s *PGStore) AddTicketComment(ctx context.Context, c NewComment) (int64, error) {
	commentType := c.CommentType
	if commentType == "" {
		commentType = "note"
	}
	comment := &TicketComment{
		TicketID:    c.TicketID,
		AgentID:     c.AgentID,
		CommentType: commentType,
		Content:     c.Content,
		IsPublic:    c.IsPublic,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(comment).Exec(ctx); err != nil {
		return 0, fmt.Errorf("helpdesk: add ticket comment: %w", err)
	}
	return comment.ID, nil
}

func (s *PGStore) CreateCustomer(ctx context.Context, c NewCustomer) (int64, error) {
	customer := &Customer{
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Phone:     c.Phone,
		AccountID: c.AccountID,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(customer).Exec(ctx); err != nil {
		return 0, fmt.Errorf("helpdesk: create customer: %w", err)
	}
	return customer.ID, nil
}

func (s *PGStore) CreateKBArticle(ctx context.Context, a NewArticle) (int64, error) {
	article := &KBArticle{
		Title:       a.Title,
		Content:     a.Content,
		CategoryID:  a.CategoryID,
		ProductID:   a.ProductID,
		Tags:        a.Tags,
		CreatedBy:   a.CreatedBy,
		IsPublished: true,
		UpdatedAt:   time.Now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(article).Exec(ctx); err != nil {
		return 0, fmt.Errorf("helpdesk: create kb article: %w", err)
	}
	return article.ID, nil
}

func (s *PGStore) IncrementKBViews(ctx context.Context, articleID int64) error {
	_, err := s.db.NewUpdate().
		Model((*KBArticle)(nil)).
		Set("view_count = view_count + 1").
		Where("id = ?", articleID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("helpdesk: increment kb views: %w", err)
	}
	return nil
}

func (s *PGStore) TicketStatistics(ctx context.Context) (*Statistics, error) {
	type pair struct {
		Key   string `bun:"key"`
		Count int    `bun:"count"`
	}

	stats := &Statistics{
		ByStatus:   make(map[string]int),
		ByPriority: make(map[string]int),
		ByCategory: make(map[string]int),
	}

	var byStatus []pair
	err := s.db.NewSelect().
		Model((*Ticket)(nil)).
		ColumnExpr("t.status AS key").
		ColumnExpr("COUNT(*) AS count").
		GroupExpr("t.status").
		Scan(ctx, &byStatus)
	if err != nil {
		return nil, fmt.Errorf("helpdesk: statistics by status: %w", err)
	}
	for _, p := range byStatus {
		stats.ByStatus[p.Key] = p.Count
	}

	var byPriority []pair
	err = s.db.NewSelect().
		Model((*Ticket)(nil)).
		ColumnExpr("t.priority AS key").
		ColumnExpr("COUNT(*) AS count").
		GroupExpr("t.priority").
		Scan(ctx, &byPriority)
	if err != nil {
		return nil, fmt.Errorf("helpdesk: statistics by priority: %w", err)
	}
	for _, p := range byPriority {
		stats.ByPriority[p.Key] = p.Count
	}

	var byCategory []pair
	err = s.db.NewSelect().
		Model((*Category)(nil)).
		ColumnExpr("cat.name AS key").
		ColumnExpr("COUNT(t.id) AS count").
		Join("LEFT JOIN tickets AS t ON cat.id = t.category_id").
		GroupExpr("cat.name").
		Scan(ctx, &byCategory)
	if err != nil {
		return nil, fmt.Errorf("helpdesk: statistics by category: %w", err)
	}
	for _, p := range byCategory {
		stats.ByCategory[p.Key] = p.Count
	}

	var counts struct {
		Resolved int `bun:"resolved"`
		Total    int `bun:"total"`
	}
	err = s.db.NewSelect().
		Model((*Ticket)(nil)).
		ColumnExpr("COUNT(CASE WHEN t.status = 'Resolved' AND t.resolved_at IS NOT NULL THEN 1 END) AS resolved").
		ColumnExpr("COUNT(*) AS total").
		Scan(ctx, &counts)
	if err != nil {
		return nil, fmt.Errorf("helpdesk: resolution rate: %w", err)
	}
	if counts.Total > 0 {
		stats.ResolutionRate = float64(counts.Resolved) / float64(counts.Total) * 100
	}
	return stats, nil
}

var _ Store = (*PGStore)(nil)
