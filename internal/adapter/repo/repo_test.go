package repo

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/sqlinline"
)

type execCall struct {
	query string
	args  []any
}

// stubExecutor answers queries from canned rows keyed by query text.
type stubExecutor struct {
	rows     map[string][][]any
	tags     map[string]string
	rowErr   error
	execs    []execCall
	queried  []string
	execErr  error
	queryErr error
}

func (s *stubExecutor) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execs = append(s.execs, execCall{query: query, args: args})
	if s.execErr != nil {
		return pgconn.CommandTag{}, s.execErr
	}
	tag := "UPDATE 1"
	if t, ok := s.tags[query]; ok {
		tag = t
	}
	return pgconn.NewCommandTag(tag), nil
}

func (s *stubExecutor) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	s.queried = append(s.queried, query)
	if s.rowErr != nil {
		return &fakeRows{err: s.rowErr}
	}
	data := s.rows[query]
	if len(data) == 0 {
		return &fakeRows{err: pgx.ErrNoRows}
	}
	r := &fakeRows{data: data[:1]}
	r.Next()
	return r
}

func (s *stubExecutor) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	s.queried = append(s.queried, query)
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return &fakeRows{data: s.rows[query]}, nil
}

// fakeRows implements pgx.Rows over in-memory values assigned by reflection.
type fakeRows struct {
	data [][]any
	idx  int
	cur  []any
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.cur, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.cur = r.data[r.idx]
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.cur) {
		return fmt.Errorf("scan: %d dest for %d values", len(dest), len(r.cur))
	}
	for i, d := range dest {
		if r.cur[i] == nil {
			continue
		}
		target := reflect.ValueOf(d).Elem()
		value := reflect.ValueOf(r.cur[i])
		if target.Kind() == reflect.Ptr && value.Kind() != reflect.Ptr {
			ptr := reflect.New(value.Type())
			ptr.Elem().Set(value)
			value = ptr
		}
		target.Set(value)
	}
	return nil
}

type stubTx struct {
	exec  *stubExecutor
	calls int
}

func (t *stubTx) InTx(_ context.Context, fn func(tx infra.SQLExecutor) error) error {
	t.calls++
	return fn(t.exec)
}

func TestBackendSetActiveFlipsScopeInOneStatement(t *testing.T) {
	exec := &stubExecutor{rows: map[string][][]any{
		sqlinline.QLockBackendScope: {{"gemini-main", true}, {"openai-main", true}},
	}}
	tx := &stubTx{exec: exec}
	repo := NewBackendRepository(exec, tx)

	if err := repo.SetActive(context.Background(), "image", "openai-main"); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if tx.calls != 1 {
		t.Fatalf("transactions = %d, want 1", tx.calls)
	}
	if len(exec.execs) != 1 || exec.execs[0].query != sqlinline.QSetActiveBackend {
		t.Fatalf("execs = %+v", exec.execs)
	}
	if args := exec.execs[0].args; args[0] != "openai-main" || args[1] != "image" {
		t.Fatalf("args = %v", args)
	}
}

func TestBackendSetActiveRejectsUnknownAndDisabled(t *testing.T) {
	exec := &stubExecutor{rows: map[string][][]any{
		sqlinline.QLockBackendScope: {{"gemini-main", true}, {"stab-old", false}},
	}}
	repo := NewBackendRepository(exec, &stubTx{exec: exec})

	if err := repo.SetActive(context.Background(), "image", "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := repo.SetActive(context.Background(), "image", "stab-old"); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(exec.execs) != 0 {
		t.Fatalf("no update may run on rejection")
	}
}

func TestBackendGetDecodesRow(t *testing.T) {
	now := time.Now()
	exec := &stubExecutor{rows: map[string][][]any{
		sqlinline.QGetBackend: {{
			"ds-1", "image", "Wanx", "qwen", true, true, []byte(`{"api_key":"k","model":"wanx2.1-t2i-plus"}`),
			decimal.NewFromInt(12), int64(10), 0.9, 1500.0, now, now,
		}},
	}}
	repo := NewBackendRepository(exec, nil)

	cfg, err := repo.Get(context.Background(), "ds-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cfg.Family != domain.FamilyDashScope || cfg.Credentials.APIKey != "k" || cfg.Credentials.Model != "wanx2.1-t2i-plus" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if !cfg.CostPerImage.Equal(decimal.NewFromInt(12)) || cfg.Stats.TotalCalls != 10 {
		t.Fatalf("cost/stats = %v %+v", cfg.CostPerImage, cfg.Stats)
	}

	if _, err := repo.Get(context.Background(), "absent"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBackendRecordCallPassesMillis(t *testing.T) {
	exec := &stubExecutor{}
	repo := NewBackendRepository(exec, nil)

	if err := repo.RecordCall(context.Background(), "k", true, 1500*time.Millisecond); err != nil {
		t.Fatalf("RecordCall: %v", err)
	}
	args := exec.execs[0].args
	if args[1] != 1.0 || args[2] != 1500.0 {
		t.Fatalf("args = %v", args)
	}
}

func TestAccountDeductPointsConditional(t *testing.T) {
	exec := &stubExecutor{rows: map[string][][]any{
		sqlinline.QDeductPoints: {{decimal.NewFromInt(5)}},
	}}
	repo := NewAccountRepository(exec)

	left, err := repo.DeductPoints(context.Background(), "u1", decimal.NewFromInt(20))
	if err != nil || !left.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("left=%v err=%v", left, err)
	}

	empty := NewAccountRepository(&stubExecutor{})
	if _, err := empty.DeductPoints(context.Background(), "u1", decimal.NewFromInt(20)); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}

func TestAccountConsumeCreditsNoRowsIsInsufficient(t *testing.T) {
	exec := &stubExecutor{tags: map[string]string{sqlinline.QConsumeCredits: "UPDATE 0"}}
	repo := NewAccountRepository(exec)

	if err := repo.ConsumeCredits(context.Background(), "u1", decimal.NewFromInt(1)); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}

func TestAccountGetAccountPool(t *testing.T) {
	exec := &stubExecutor{rows: map[string][][]any{
		sqlinline.QGetAccount: {{"u1", decimal.NewFromInt(7), true, decimal.NewFromInt(50), decimal.NewFromInt(40), nil}},
	}}
	repo := NewAccountRepository(exec)

	acct, err := repo.GetAccount(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acct.Pool == nil || !acct.Pool.Remaining().Equal(decimal.NewFromInt(10)) || !acct.Points.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("account = %+v pool = %+v", acct, acct.Pool)
	}

	missing := NewAccountRepository(&stubExecutor{})
	if _, err := missing.GetAccount(context.Background(), "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGenerationIncrementCounterSelectsQuery(t *testing.T) {
	exec := &stubExecutor{}
	repo := NewGenerationRepository(exec)
	want := map[domain.Counter]string{
		domain.CounterFavorite: sqlinline.QToggleFavorite,
		domain.CounterDownload: sqlinline.QIncrementDownloadCount,
		domain.CounterShare:    sqlinline.QIncrementShareCount,
	}
	for counter, query := range want {
		if err := repo.IncrementCounter(context.Background(), "rec", "u1", counter); err != nil {
			t.Fatalf("%s: %v", counter, err)
		}
		if got := exec.execs[len(exec.execs)-1].query; got != query {
			t.Fatalf("%s used the wrong query", counter)
		}
	}
	if err := repo.IncrementCounter(context.Background(), "rec", "u1", "likes"); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	notOwned := NewGenerationRepository(&stubExecutor{tags: map[string]string{sqlinline.QIncrementShareCount: "UPDATE 0"}})
	if err := notOwned.IncrementCounter(context.Background(), "rec", "u2", domain.CounterShare); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGuardRuleListMapsApplyTo(t *testing.T) {
	exec := &stubExecutor{rows: map[string][][]any{
		sqlinline.QListEnabledGuardRules: {
			{"r1", "Faces", "face_preserve", true, 0, "Keep the face identical", []string{"image_to_image"}},
			{"r2", "Neg", "negative_prompt", true, 1, "blurry", []string(nil)},
		},
	}}
	repo := NewGuardRuleRepository(exec, nil)

	rules, err := repo.ListEnabled(context.Background())
	if err != nil {
		t.Fatalf("ListEnabled: %v", err)
	}
	if len(rules) != 2 || rules[0].Type != domain.RuleFacePreserve || rules[0].ApplyTo[0] != domain.GenerationImageToImage {
		t.Fatalf("rules = %+v", rules)
	}
	if !rules[1].IsNegative() || rules[1].ApplyTo != nil {
		t.Fatalf("rule[1] = %+v", rules[1])
	}
}

func TestGuardRuleListSkipsUnknownType(t *testing.T) {
	exec := &stubExecutor{rows: map[string][][]any{
		sqlinline.QListGuardRules: {
			{"r1", "Legacy", "system", true, 0, "old style rule", []string(nil)},
			{"r2", "Quality", "quality_control", true, 1, "sharp focus", []string(nil)},
		},
	}}
	repo := NewGuardRuleRepository(exec, nil)

	rules, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rules) != 1 || rules[0].ID != "r2" || rules[0].Type != domain.RuleQualityControl {
		t.Fatalf("rules = %+v", rules)
	}
}

func TestTemplateGetCostOverride(t *testing.T) {
	exec := &stubExecutor{rows: map[string][][]any{
		sqlinline.QGetTemplate: {{"tpl", "Neon", "neon city, {{prompt}}", decimal.NullDecimal{Decimal: decimal.NewFromInt(3), Valid: true}, "creator"}},
	}}
	repo := NewTemplateRepository(exec)

	tpl, err := repo.Get(context.Background(), "tpl")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if tpl.CostOverride == nil || !tpl.CostOverride.Equal(decimal.NewFromInt(3)) || tpl.CreatorID != "creator" {
		t.Fatalf("template = %+v", tpl)
	}
}

func TestLedgerAppendPassesEntry(t *testing.T) {
	exec := &stubExecutor{}
	repo := NewLedgerRepository(exec)
	entry := &domain.LedgerEntry{ID: "id", UserID: "u1", Amount: decimal.NewFromInt(2), Direction: domain.LedgerDebit, Source: domain.SourcePoints, Status: "completed"}

	if err := repo.Append(context.Background(), entry); err != nil {
		t.Fatalf("Append: %v", err)
	}
	args := exec.execs[0].args
	if args[3] != "debit" || args[4] != "points" {
		t.Fatalf("args = %v", args)
	}
}
