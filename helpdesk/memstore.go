package helpdesk

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemStore is the in-memory Store. It seeds the same sample data set the
// Postgres schema ships with, so offline runs and tests see realistic
// records.
type MemStore struct {
	mu         sync.RWMutex
	categories []Category
	products   []Product
	customers  []Customer
	agents     []Agent
	tickets    []Ticket
	comments   []TicketComment
	articles   []KBArticle

	nextTicketID   int64
	nextCommentID  int64
	nextCustomerID int64
	nextArticleID  int64
}

func NewMemStore() *MemStore {
	s := &MemStore{}
	s.seed()
	return s
}

func (s *MemStore) seed() {
	now := time.Now().UTC()

	s.categories = []Category{
		{ID: 1, Name: "Hardware Issues", Description: "Physical device problems, damage, malfunction"},
		{ID: 2, Name: "Software Issues", Description: "OS and app-related problems"},
		{ID: 3, Name: "Account & Security", Description: "Account, cloud and security concerns"},
		{ID: 4, Name: "Connectivity", Description: "Wi-Fi, Bluetooth, cellular connectivity issues"},
		{ID: 5, Name: "Performance", Description: "Slow performance, battery, storage issues"},
	}
	s.products = []Product{
		{ID: 1, ProductLine: "iPhone", Model: "iPhone 15 Pro Max", ReleaseYear: 2023, IsActive: true},
		{ID: 2, ProductLine: "iPhone", Model: "iPhone 14", ReleaseYear: 2022, IsActive: true},
		{ID: 3, ProductLine: "Mac", Model: "MacBook Pro 16-inch (M3)", ReleaseYear: 2023, IsActive: true},
		{ID: 4, ProductLine: "Mac", Model: "Mac mini (M2)", ReleaseYear: 2023, IsActive: true},
		{ID: 5, ProductLine: "iPad", Model: "iPad Air (5th gen)", ReleaseYear: 2022, IsActive: true},
	}
	s.customers = []Customer{
		{ID: 1, FirstName: "John", LastName: "Smith", Email: "john.smith@email.com", Phone: "+1-555-0123", AccountID: "john.smith@icloud.com", CreatedAt: now},
		{ID: 2, FirstName: "Sarah", LastName: "Johnson", Email: "sarah.johnson@email.com", Phone: "+1-555-0124", AccountID: "sarah.j@icloud.com", CreatedAt: now},
		{ID: 3, FirstName: "Michael", LastName: "Brown", Email: "michael.brown@email.com", Phone: "+1-555-0125", AccountID: "m.brown@icloud.com", CreatedAt: now},
	}
	s.agents = []Agent{
		{ID: 1, FirstName: "Alex", LastName: "Thompson", Email: "alex.thompson@support.example.com", EmployeeID: "EMP001", Specialization: "iOS Support"},
		{ID: 2, FirstName: "Maria", LastName: "Garcia", Email: "maria.garcia@support.example.com", EmployeeID: "EMP002", Specialization: "macOS Support"},
		{ID: 3, FirstName: "James", LastName: "Lee", Email: "james.lee@support.example.com", EmployeeID: "EMP003", Specialization: "Hardware Specialist"},
	}
	agent1, agent2 := int64(1), int64(2)
	product1, product4 := int64(1), int64(4)
	s.tickets = []Ticket{
		{
			ID: 1, TicketNumber: "APL-2024-001", CustomerID: 1, AgentID: &agent1, CategoryID: 2,
			ProductID: &product1, Subject: "App crashes on startup",
			Description: "Photo app crashes immediately after opening", Priority: "High", Status: "Open",
			CreatedAt: now.Add(-72 * time.Hour), UpdatedAt: now.Add(-72 * time.Hour),
		},
		{
			ID: 2, TicketNumber: "APL-2024-002", CustomerID: 2, AgentID: &agent2, CategoryID: 1,
			ProductID: &product4, Subject: "Mac mini will not power off",
			Description: "Device stays on after shutdown is selected", Priority: "Medium", Status: "In Progress",
			CreatedAt: now.Add(-48 * time.Hour), UpdatedAt: now.Add(-24 * time.Hour),
		},
		{
			ID: 3, TicketNumber: "APL-2024-003", CustomerID: 3, CategoryID: 4,
			Subject: "Wi-Fi drops every few minutes", Description: "Connection unstable since last update",
			Priority: "Low", Status: "Resolved", Resolution: "Router firmware update fixed the drops",
			CreatedAt: now.Add(-120 * time.Hour), UpdatedAt: now.Add(-96 * time.Hour),
		},
	}
	resolved := now.Add(-96 * time.Hour)
	s.tickets[2].ResolvedAt = &resolved

	s.articles = []KBArticle{
		{
			ID: 1, Title: "How to force restart an unresponsive device",
			Content:    "Press and hold the power button for 10 seconds until the device turns off. For desktops, unplug the power cable, wait 30 seconds, and reconnect.",
			CategoryID: 1, Tags: "restart,power,frozen", CreatedBy: 3, IsPublished: true, ViewCount: 230, UpdatedAt: now,
		},
		{
			ID: 2, Title: "Resolving Wi-Fi connectivity drops",
			Content:    "Forget the network, restart networking hardware, and rejoin. Check for OS and router firmware updates.",
			CategoryID: 4, Tags: "wifi,network,drops", CreatedBy: 1, IsPublished: true, ViewCount: 120, UpdatedAt: now,
		},
		{
			ID: 3, Title: "Freeing storage when performance degrades",
			Content:    "Review storage usage, offload unused apps, and clear local caches before considering a reset.",
			CategoryID: 5, Tags: "storage,performance,slow", CreatedBy: 2, IsPublished: true, ViewCount: 85, UpdatedAt: now,
		},
	}

	s.nextTicketID = 4
	s.nextCommentID = 1
	s.nextCustomerID = 4
	s.nextArticleID = 4
}

func (s *MemStore) categoryName(id int64) string {
	for _, c := range s.categories {
		if c.ID == id {
			return c.Name
		}
	}
	return ""
}

func (s *MemStore) agentName(id *int64) string {
	if id == nil {
		return ""
	}
	for _, a := range s.agents {
		if a.ID == *id {
			return a.FirstName + " " + a.LastName
		}
	}
	return ""
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func (s *MemStore) SearchTickets(ctx context.Context, filter TicketFilter) ([]Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var out []Ticket
	for _, t := range s.tickets {
		var customer *Customer
		for i := range s.customers {
			if s.customers[i].ID == t.CustomerID {
				customer = &s.customers[i]
				break
			}
		}

		if filter.CustomerEmail != "" && (customer == nil || !containsFold(customer.Email, filter.CustomerEmail)) {
			continue
		}
		if filter.AgentID != 0 && (t.AgentID == nil || *t.AgentID != filter.AgentID) {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && t.Priority != filter.Priority {
			continue
		}
		if filter.Category != "" && !containsFold(s.categoryName(t.CategoryID), filter.Category) {
			continue
		}
		if filter.ProductLine != "" {
			line := ""
			if t.ProductID != nil {
				for _, p := range s.products {
					if p.ID == *t.ProductID {
						line = p.ProductLine
						break
					}
				}
			}
			if !containsFold(line, filter.ProductLine) {
				continue
			}
		}
		if filter.FreeText != "" &&
			!containsFold(t.Subject, filter.FreeText) &&
			!containsFold(t.Description, filter.FreeText) {
			continue
		}

		copied := t
		if customer != nil {
			copied.CustomerName = customer.FirstName + " " + customer.LastName
			copied.CustomerEmail = customer.Email
		}
		copied.AgentName = s.agentName(t.AgentID)
		copied.CategoryName = s.categoryName(t.CategoryID)
		if t.ProductID != nil {
			for _, p := range s.products {
				if p.ID == *t.ProductID {
					copied.ProductLine = p.ProductLine
					copied.ProductModel = p.Model
					break
				}
			}
		}
		out = append(out, copied)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) SearchKnowledgeBase(ctx context.Context, term string, categoryID int64, limit int) ([]KBArticle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	var out []KBArticle
	for _, a := range s.articles {
		if !a.IsPublished {
			continue
		}
		if categoryID != 0 && a.CategoryID != categoryID {
			continue
		}
		if term != "" && !containsFold(a.Title, term) && !containsFold(a.Content, term) && !containsFold(a.Tags, term) {
			continue
		}
		copied := a
		copied.CategoryName = s.categoryName(a.CategoryID)
		copied.AuthorName = s.agentName(&a.CreatedBy)
		out = append(out, copied)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ViewCount != out[j].ViewCount {
			return out[i].ViewCount > out[j].ViewCount
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) CustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.customers {
		if strings.EqualFold(c.Email, email) {
			copied := c
			return &copied, nil
		}
	}
	return nil, ErrCustomerNotFound
}

func (s *MemStore) AgentWorkload(ctx context.Context, agentID int64) (*Workload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var agent *Agent
	for i := range s.agents {
		if s.agents[i].ID == agentID {
			copied := s.agents[i]
			agent = &copied
			break
		}
	}
	if agent == nil {
		return nil, ErrAgentNotFound
	}

	active := map[string]bool{"Open": true, "In Progress": true, "Pending": true}
	counts := make(map[[2]string]int)
	var order [][2]string
	for _, t := range s.tickets {
		if t.AgentID == nil || *t.AgentID != agentID || !active[t.Status] {
			continue
		}
		key := [2]string{t.Status, t.Priority}
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}

	w := &Workload{Agent: agent}
	for _, key := range order {
		w.Workload = append(w.Workload, WorkloadBucket{Status: key[0], Priority: key[1], Count: counts[key]})
		w.TotalActiveTickets += counts[key]
	}
	return w, nil
}

func (s *MemStore) CreateTicket(ctx context.Context, t NewTicket) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	priority := t.Priority
	if priority == "" {
		priority = "Medium"
	}
	now := time.Now().UTC()
	prefix := fmt.Sprintf("APL-%d-", now.Year())

	count := 0
	for _, existing := range s.tickets {
		if strings.HasPrefix(existing.TicketNumber, prefix) {
			count++
		}
	}

	ticket := Ticket{
		ID:           s.nextTicketID,
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
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.nextTicketID++
	s.tickets = append(s.tickets, ticket)
	return ticket.TicketNumber, nil
}

func (s *MemStore) UpdateTicketStatus(ctx context.Context, u TicketUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.tickets {
		if s.tickets[i].ID != u.TicketID {
			continue
		}
		now := time.Now().UTC()
		s.tickets[i].Status = u.Status
		s.tickets[i].UpdatedAt = now
		if u.AgentID != nil {
			s.tickets[i].AgentID = u.AgentID
		}
		if u.Resolution != "" {
			s.tickets[i].Resolution = u.Resolution
		}
		switch u.Status {
		case "Resolved":
			s.tickets[i].ResolvedAt = &now
		case "Closed":
			s.tickets[i].ClosedAt = &now
		}
		return true, nil
	}
	return false, nil
}

func (s *MemStore) AddTicketComment(ctx context.Context, c NewComment) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	commentType := c.CommentType
	if commentType == "" {
		commentType = "note"
	}
	comment := TicketComment{
		ID:          s.nextCommentID,
		TicketID:    c.TicketID,
		AgentID:     c.AgentID,
		CommentType: commentType,
		Content:     c.Content,
		IsPublic:    c.IsPublic,
		CreatedAt:   time.Now().UTC(),
	}
	s.nextCommentID++
	s.comments = append(s.comments, comment)
	return comment.ID, nil
}

func (s *MemStore) CreateCustomer(ctx context.Context, c NewCustomer) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer := Customer{
		ID:        s.nextCustomerID,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Phone:     c.Phone,
		AccountID: c.AccountID,
		CreatedAt: time.Now().UTC(),
	}
	s.nextCustomerID++
	s.customers = append(s.customers, customer)
	return customer.ID, nil
}

func (s *MemStore) CreateKBArticle(ctx context.Context, a NewArticle) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	article := KBArticle{
		ID:          s.nextArticleID,
		Title:       a.Title,
		Content:     a.Content,
		CategoryID:  a.CategoryID,
		ProductID:   a.ProductID,
		Tags:        a.Tags,
		CreatedBy:   a.CreatedBy,
		IsPublished: true,
		UpdatedAt:   time.Now().UTC(),
	}
	s.nextArticleID++
	s.articles = append(s.articles, article)
	return article.ID, nil
}

func (s *MemStore) IncrementKBViews(ctx context.Context, articleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.articles {
		if s.articles[i].ID == articleID {
			s.articles[i].ViewCount++
			return nil
		}
	}
	return nil
}

func (s *MemStore) TicketStatistics(ctx context.Context) (*Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Statistics{
		ByStatus:   make(map[string]int),
		ByPriority: make(map[string]int),
		ByCategory: make(map[string]int),
	}
	resolved := 0
	for _, t := range s.tickets {
		stats.ByStatus[t.Status]++
		stats.ByPriority[t.Priority]++
		stats.ByCategory[s.categoryName(t.CategoryID)]++
		if t.Status == "Resolved" && t.ResolvedAt != nil {
			resolved++
		}
	}
	for _, c := range s.categories {
		if _, ok := stats.ByCategory[c.Name]; !ok {
			stats.ByCategory[c.Name] = 0
		}
	}
	if len(s.tickets) > 0 {
		stats.ResolutionRate = float64(resolved) / float64(len(s.tickets)) * 100
	}
	return stats, nil
}

var _ Store = (*MemStore)(nil)
