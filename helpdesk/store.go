// Package helpdesk is the tool-server side of the system: the ticket and
// knowledge-base store, the support documentation index, and the stdio
// JSON-RPC server exposing them as named tools. The orchestration core never
// imports this package's types; everything crosses the tool boundary as
// content blocks.
package helpdesk

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

var (
	ErrCustomerNotFound = errors.New("helpdesk: customer not found")
	ErrAgentNotFound    = errors.New("helpdesk: agent not found")
	ErrTicketNotFound   = errors.New("helpdesk: ticket not found")
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets,alias:t" json:"-"`

	ID           int64      `bun:"id,pk,autoincrement" json:"id"`
	TicketNumber string     `bun:"ticket_number,notnull" json:"ticket_number"`
	CustomerID   int64      `bun:"customer_id,notnull" json:"customer_id"`
	AgentID      *int64     `bun:"agent_id" json:"agent_id,omitempty"`
	CategoryID   int64      `bun:"category_id,notnull" json:"category_id"`
	ProductID    *int64     `bun:"product_id" json:"product_id,omitempty"`
	Subject      string     `bun:"subject,notnull" json:"subject"`
	Description  string     `bun:"description" json:"description"`
	Priority     string     `bun:"priority,notnull,default:'Medium'" json:"priority"`
	Status       string     `bun:"status,notnull,default:'Open'" json:"status"`
	SerialNumber string     `bun:"serial_number" json:"serial_number,omitempty"`
	OSVersion    string     `bun:"os_version" json:"os_version,omitempty"`
	Resolution   string     `bun:"resolution" json:"resolution,omitempty"`
	CreatedAt    time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt    time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
	ResolvedAt   *time.Time `bun:"resolved_at" json:"resolved_at,omitempty"`
	ClosedAt     *time.Time `bun:"closed_at" json:"closed_at,omitempty"`

	// Join projections, populated by search queries.
	CustomerName  string `bun:"customer_name,scanonly" json:"customer_name,omitempty"`
	CustomerEmail string `bun:"customer_email,scanonly" json:"customer_email,omitempty"`
	AgentName     string `bun:"agent_name,scanonly" json:"agent_name,omitempty"`
	CategoryName  string `bun:"category_name,scanonly" json:"category_name,omitempty"`
	ProductLine   string `bun:"product_line,scanonly" json:"product_line,omitempty"`
	ProductModel  string `bun:"model,scanonly" json:"model,omitempty"`
}

type Customer struct {
	bun.BaseModel `bun:"table:customers,alias:c" json:"-"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	FirstName string    `bun:"first_name,notnull" json:"first_name"`
	LastName  string    `bun:"last_name,notnull" json:"last_name"`
	Email     string    `bun:"email,notnull,unique" json:"email"`
	Phone     string    `bun:"phone" json:"phone,omitempty"`
	AccountID string    `bun:"account_id" json:"account_id,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

type Agent struct {
	bun.BaseModel `bun:"table:agents,alias:a" json:"-"`

	ID             int64  `bun:"id,pk,autoincrement" json:"id"`
	FirstName      string `bun:"first_name,notnull" json:"first_name"`
	LastName       string `bun:"last_name,notnull" json:"last_name"`
	Email          string `bun:"email,notnull,unique" json:"email"`
	EmployeeID     string `bun:"employee_id,notnull" json:"employee_id"`
	Specialization string `bun:"specialization" json:"specialization,omitempty"`
}

type Category struct {
	bun.BaseModel `bun:"table:categories,alias:cat" json:"-"`

	ID          int64  `bun:"id,pk,autoincrement" json:"id"`
	Name        string `bun:"name,notnull,unique" json:"name"`
	Description string `bun:"description" json:"description,omitempty"`
}

type Product struct {
	bun.BaseModel `bun:"table:products,alias:p" json:"-"`

	ID          int64  `bun:"id,pk,autoincrement" json:"id"`
	ProductLine string `bun:"product_line,notnull" json:"product_line"`
	Model       string `bun:"model,notnull" json:"model"`
	ReleaseYear int    `bun:"release_year" json:"release_year,omitempty"`
	IsActive    bool   `bun:"is_active,notnull,default:true" json:"is_active"`
}

type KBArticle struct {
	bun.BaseModel `bun:"table:knowledge_base,alias:kb" json:"-"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Title       string    `bun:"title,notnull" json:"title"`
	Content     string    `bun:"content,notnull" json:"content"`
	CategoryID  int64     `bun:"category_id,notnull" json:"category_id"`
	ProductID   *int64    `bun:"product_id" json:"product_id,omitempty"`
	Tags        string    `bun:"tags" json:"tags,omitempty"`
	CreatedBy   int64     `bun:"created_by,notnull" json:"created_by"`
	IsPublished bool      `bun:"is_published,notnull,default:true" json:"is_published"`
	ViewCount   int64     `bun:"view_count,notnull,default:0" json:"view_count"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`

	CategoryName string `bun:"category_name,scanonly" json:"category_name,omitempty"`
	AuthorName   string `bun:"author_name,scanonly" json:"author_name,omitempty"`
}

type TicketComment struct {
	bun.BaseModel `bun:"table:ticket_comments,alias:tc" json:"-"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	TicketID    int64     `bun:"ticket_id,notnull" json:"ticket_id"`
	AgentID     *int64    `bun:"agent_id" json:"agent_id,omitempty"`
	CommentType string    `bun:"comment_type,notnull,default:'note'" json:"comment_type"`
	Content     string    `bun:"content,notnull" json:"content"`
	IsPublic    bool      `bun:"is_public,notnull,default:false" json:"is_public"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// TicketFilter narrows a ticket search. Zero-valued fields are ignored.
type TicketFilter struct {
	CustomerEmail string
	AgentID       int64
	Status        string
	Priority      string
	Category      string
	ProductLine   string
	// FreeText matches subject or description when set; used when the
	// caller only has the user's query text.
	FreeText string
	Limit    int
}

// WorkloadBucket is one (status, priority) slice of an agent's open tickets.
type WorkloadBucket struct {
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Count    int    `json:"count"`
}

type Workload struct {
	Agent              *Agent           `json:"agent"`
	Workload           []WorkloadBucket `json:"workload"`
	TotalActiveTickets int              `json:"total_active_tickets"`
}

type Statistics struct {
	ByStatus       map[string]int `json:"by_status"`
	ByPriority     map[string]int `json:"by_priority"`
	ByCategory     map[string]int `json:"by_category"`
	ResolutionRate float64        `json:"resolution_rate"`
}

type NewTicket struct {
	CustomerID   int64
	CategoryID   int64
	Subject      string
	Description  string
	Priority     string
	ProductID    *int64
	SerialNumber string
	OSVersion    string
}

type TicketUpdate struct {
	TicketID   int64
	Status     string
	AgentID    *int64
	Resolution string
}

type NewComment struct {
	TicketID    int64
	Content     string
	AgentID     *int64
	CommentType string
	IsPublic    bool
}

type NewCustomer struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	AccountID string
}

type NewArticle struct {
	Title      string
	Content    string
	CategoryID int64
	CreatedBy  int64
	ProductID  *int64
	Tags       string
}

// Store is the ticket and knowledge-base persistence boundary. The bun
// implementation talks to Postgres; the in-memory implementation seeds
// sample data and backs tests and offline runs.
type Store interface {
	SearchTickets(ctx context.Context, filter TicketFilter) ([]Ticket, error)
	SearchKnowledgeBase(ctx context.Context, term string, categoryID int64, limit int) ([]KBArticle, error)
	CustomerByEmail(ctx context.Context, email string) (*Customer, error)
	AgentWorkload(ctx context.Context, agentID int64) (*Workload, error)
	CreateTicket(ctx context.Context, t NewTicket) (string, error)
	UpdateTicketStatus(ctx context.Context, u TicketUpdate) (bool, error)
	AddTicketComment(ctx context.Context, c NewComment) (int64, error)
	CreateCustomer(ctx context.Context, c NewCustomer) (int64, error)
	CreateKBArticle(ctx context.Context, a NewArticle) (int64, error)
	IncrementKBViews(ctx context.Context, articleID int64) error
	TicketStatistics(ctx context.Context) (*Statistics, error)
}
