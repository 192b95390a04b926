package auction

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// ListFilter captures the query surface of the auction list endpoints:
// scoping, search, choice filters, ordering and pagination. The zero value
// lists everything, first page, default ordering.
type ListFilter struct {
	Author          uuid.UUID // scope to one author when non-nil
	ExcludeStatuses []Status
	StoredStatus    Status    // matches the column value, no Upcoming derivation
	BidParticipant  uuid.UUID // scope to auctions this user has bid on

	Status    Status // includes the derived Upcoming
	Condition Condition
	Category  string
	MinPrice  string
	MaxPrice  string
	StartFrom time.Time
	EndTo     time.Time
	Search    string

	Ordering string
	Page     int
	LastPage bool
	PageSize int

	Now time.Time // reference time for Live/Upcoming semantics
}

// orderableFields whitelists ordering keys and maps them to SQL expressions.
var orderableFields = map[string]string{
	"start_date": "a.start_date",
	"end_date":   "a.end_date",
	"max_price":  "a.max_price",
	"quantity":   "a.quantity",
	"category":   "c.name",
	"status":     "a.status",
}

// ParseListFilter reads the common list parameters from a query string.
// Unknown ordering keys and malformed numbers are ignored rather than
// rejected, matching the forgiving behavior of the list endpoints.
func ParseListFilter(q url.Values) ListFilter {
	f := ListFilter{Now: time.Now()}

	f.Status = Status(q.Get("status"))
	f.Condition = Condition(q.Get("condition"))
	f.Category = q.Get("category")
	f.Search = q.Get("search")
	f.Ordering = q.Get("ordering")

	if v := q.Get("min_price"); v != "" {
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			f.MinPrice = v
		}
	}
	if v := q.Get("max_price"); v != "" {
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			f.MaxPrice = v
		}
	}
	if v := q.Get("start_date"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			f.StartFrom = t
		}
	}
	if v := q.Get("end_date"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			f.EndTo = t
		}
	}

	switch page := q.Get("page"); {
	case page == "last":
		f.LastPage = true
	case page != "":
		if n, err := strconv.Atoi(page); err == nil && n > 0 {
			f.Page = n
		}
	}
	if v := q.Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.PageSize = n
		}
	}
	return f
}

func (f ListFilter) whereClause() (string, []interface{}) {
	now := f.Now
	if now.IsZero() {
		now = time.Now()
	}

	conds := []string{}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Author != uuid.Nil {
		conds = append(conds, "a.author = "+arg(f.Author))
	}
	if len(f.ExcludeStatuses) > 0 {
		excluded := make([]string, len(f.ExcludeStatuses))
		for i, st := range f.ExcludeStatuses {
			excluded[i] = string(st)
		}
		conds = append(conds, "NOT (a.status = ANY("+arg(pq.Array(excluded))+"))")
	}
	if f.StoredStatus != "" {
		conds = append(conds, "a.status = "+arg(string(f.StoredStatus)))
	}
	if f.BidParticipant != uuid.Nil {
		conds = append(conds, `EXISTS (SELECT 1 FROM bids pb
			WHERE pb.auction_id = a.id AND pb.author = `+arg(f.BidParticipant)+`)`)
	}

	switch f.Status {
	case "":
	case StatusUpcoming:
		conds = append(conds, "a.status = 'Live'", "a.start_date > "+arg(now))
	case StatusLive:
		conds = append(conds, "a.status = 'Live'", "a.start_date <= "+arg(now))
	default:
		conds = append(conds, "a.status = "+arg(string(f.Status)))
	}

	if f.Condition != "" {
		conds = append(conds, "a.condition = "+arg(string(f.Condition)))
	}
	if f.Category != "" {
		conds = append(conds, "c.name = "+arg(f.Category))
	}
	if f.MinPrice != "" {
		conds = append(conds, "a.max_price >= "+arg(f.MinPrice))
	}
	if f.MaxPrice != "" {
		conds = append(conds, "a.max_price <= "+arg(f.MaxPrice))
	}
	if !f.StartFrom.IsZero() {
		conds = append(conds, "a.start_date >= "+arg(f.StartFrom))
	}
	if !f.EndTo.IsZero() {
		conds = append(conds, "a.end_date <= "+arg(f.EndTo))
	}
	if f.Search != "" {
		pattern := arg("%" + f.Search + "%")
		conds = append(conds, `(a.auction_name ILIKE `+pattern+
			` OR a.description ILIKE `+pattern+
			` OR EXISTS (SELECT 1 FROM auction_tags sat JOIN tags st2 ON st2.id = sat.tag_id
			WHERE sat.auction_id = a.id AND st2.name ILIKE `+pattern+`))`)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (f ListFilter) orderClause() string {
	terms := []string{}
	for _, field := range strings.Split(f.Ordering, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		dir := " ASC"
		if strings.HasPrefix(field, "-") {
			dir = " DESC"
			field = field[1:]
		}
		if col, ok := orderableFields[field]; ok {
			terms = append(terms, col+dir)
		}
	}
	if len(terms) == 0 {
		return " ORDER BY a.created_at DESC"
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

// PageInfo resolves the effective page number, page size and page count for
// a given total. page=last resolves to the final page.
func (f ListFilter) PageInfo(total int64) (page, pageSize, totalPages int) {
	pageSize = f.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	if totalPages < 1 {
		totalPages = 1
	}

	page = f.Page
	if f.LastPage || page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}
	return page, pageSize, totalPages
}

func (f ListFilter) pageWindow(total int64) (offset, limit int) {
	page, pageSize, _ := f.PageInfo(total)
	return (page - 1) * pageSize, pageSize
}
