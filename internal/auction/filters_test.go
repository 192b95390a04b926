package auction

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParseListFilter(t *testing.T) {
	q := url.Values{}
	q.Set("status", "Upcoming")
	q.Set("condition", "New")
	q.Set("category", "Electronics")
	q.Set("min_price", "10.50")
	q.Set("max_price", "not-a-number")
	q.Set("start_date", "2026-01-15")
	q.Set("search", "laptop")
	q.Set("ordering", "-max_price")
	q.Set("page", "3")
	q.Set("page_size", "25")

	f := ParseListFilter(q)

	if f.Status != StatusUpcoming {
		t.Errorf("Status = %q, want Upcoming", f.Status)
	}
	if f.Condition != ConditionNew {
		t.Errorf("Condition = %q, want New", f.Condition)
	}
	if f.Category != "Electronics" {
		t.Errorf("Category = %q", f.Category)
	}
	if f.MinPrice != "10.50" {
		t.Errorf("MinPrice = %q", f.MinPrice)
	}
	if f.MaxPrice != "" {
		t.Errorf("malformed max_price should be dropped, got %q", f.MaxPrice)
	}
	if f.StartFrom.IsZero() {
		t.Error("StartFrom should be parsed")
	}
	if f.Page != 3 || f.PageSize != 25 {
		t.Errorf("Page/PageSize = %d/%d, want 3/25", f.Page, f.PageSize)
	}
	if f.LastPage {
		t.Error("LastPage should be false for a numeric page")
	}
}

func TestParseListFilterLastPage(t *testing.T) {
	f := ParseListFilter(url.Values{"page": {"last"}})
	if !f.LastPage {
		t.Error("page=last should set LastPage")
	}
	if f.Page != 0 {
		t.Errorf("Page = %d, want 0", f.Page)
	}
}

func TestWhereClauseUpcoming(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	f := ListFilter{Status: StatusUpcoming, Now: now}

	where, args := f.whereClause()
	if !strings.Contains(where, "a.status = 'Live'") {
		t.Errorf("Upcoming should constrain status to Live: %s", where)
	}
	if !strings.Contains(where, "a.start_date > $1") {
		t.Errorf("Upcoming should require a future start: %s", where)
	}
	if len(args) != 1 || args[0] != now {
		t.Errorf("args = %v", args)
	}
}

func TestWhereClauseLiveRequiresStarted(t *testing.T) {
	f := ListFilter{Status: StatusLive, Now: time.Now()}
	where, _ := f.whereClause()
	if !strings.Contains(where, "a.start_date <= $1") {
		t.Errorf("Live should require a started auction: %s", where)
	}
}

func TestWhereClauseAuthorAndExclusions(t *testing.T) {
	author := uuid.New()
	f := ListFilter{
		Author:          author,
		ExcludeStatuses: []Status{StatusDeleted},
	}
	where, args := f.whereClause()
	if !strings.Contains(where, "a.author = $1") {
		t.Errorf("missing author scope: %s", where)
	}
	if !strings.Contains(where, "NOT (a.status = ANY($2))") {
		t.Errorf("missing status exclusion: %s", where)
	}
	if len(args) != 2 {
		t.Errorf("args = %v", args)
	}
}

func TestWhereClauseStoredStatus(t *testing.T) {
	f := ListFilter{StoredStatus: StatusLive}
	where, args := f.whereClause()
	if !strings.Contains(where, "a.status = $1") {
		t.Errorf("missing stored status match: %s", where)
	}
	if strings.Contains(where, "a.start_date") {
		t.Errorf("stored status must not derive from start_date: %s", where)
	}
	if len(args) != 1 || args[0] != "Live" {
		t.Errorf("args = %v", args)
	}
}

func TestWhereClauseBidParticipant(t *testing.T) {
	seller := uuid.New()
	f := ListFilter{BidParticipant: seller}
	where, args := f.whereClause()
	if !strings.Contains(where, "EXISTS (SELECT 1 FROM bids pb") {
		t.Errorf("missing bid participation scope: %s", where)
	}
	if len(args) != 1 || args[0] != seller {
		t.Errorf("args = %v", args)
	}
}

func TestWhereClauseEmpty(t *testing.T) {
	where, args := ListFilter{}.whereClause()
	if where != "" || len(args) != 0 {
		t.Errorf("zero filter should produce no WHERE, got %q %v", where, args)
	}
}

func TestOrderClause(t *testing.T) {
	tests := []struct {
		ordering string
		want     string
	}{
		{"", " ORDER BY a.created_at DESC"},
		{"max_price", " ORDER BY a.max_price ASC"},
		{"-end_date", " ORDER BY a.end_date DESC"},
		{"category,-quantity", " ORDER BY c.name ASC, a.quantity DESC"},
		{"drop table", " ORDER BY a.created_at DESC"},
		{"-author", " ORDER BY a.created_at DESC"},
	}
	for _, tt := range tests {
		got := ListFilter{Ordering: tt.ordering}.orderClause()
		if got != tt.want {
			t.Errorf("orderClause(%q) = %q, want %q", tt.ordering, got, tt.want)
		}
	}
}

func TestPageInfo(t *testing.T) {
	tests := []struct {
		name           string
		f              ListFilter
		total          int64
		wantPage       int
		wantSize       int
		wantTotalPages int
	}{
		{"defaults", ListFilter{}, 25, 1, 10, 3},
		{"explicit page", ListFilter{Page: 2, PageSize: 5}, 25, 2, 5, 5},
		{"last page", ListFilter{LastPage: true}, 25, 3, 10, 3},
		{"page beyond end clamps", ListFilter{Page: 99}, 25, 3, 10, 3},
		{"empty result still one page", ListFilter{}, 0, 1, 10, 1},
		{"size capped", ListFilter{PageSize: 1000}, 500, 1, 100, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, size, totalPages := tt.f.PageInfo(tt.total)
			if page != tt.wantPage || size != tt.wantSize || totalPages != tt.wantTotalPages {
				t.Errorf("PageInfo(%d) = (%d, %d, %d), want (%d, %d, %d)",
					tt.total, page, size, totalPages, tt.wantPage, tt.wantSize, tt.wantTotalPages)
			}
		})
	}
}

func TestPageWindow(t *testing.T) {
	f := ListFilter{Page: 3, PageSize: 10}
	offset, limit := f.pageWindow(100)
	if offset != 20 || limit != 10 {
		t.Errorf("pageWindow = (%d, %d), want (20, 10)", offset, limit)
	}
}

func TestEffectiveStatus(t *testing.T) {
	now := time.Now()
	a := &Auction{Status: StatusLive, StartDate: now.Add(time.Hour)}
	if got := a.EffectiveStatus(now); got != StatusUpcoming {
		t.Errorf("not-yet-started Live auction = %q, want Upcoming", got)
	}
	a.StartDate = now.Add(-time.Hour)
	if got := a.EffectiveStatus(now); got != StatusLive {
		t.Errorf("started Live auction = %q, want Live", got)
	}
	a.Status = StatusCompleted
	if got := a.EffectiveStatus(now); got != StatusCompleted {
		t.Errorf("Completed auction = %q, want Completed", got)
	}
}
