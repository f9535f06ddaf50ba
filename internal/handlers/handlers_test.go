package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/IntakeDeskAI/Shrubb-sub001/internal/models"
	"github.com/IntakeDeskAI/Shrubb-sub001/internal/spend"
	"github.com/IntakeDeskAI/Shrubb-sub001/internal/store"
	"github.com/IntakeDeskAI/Shrubb-sub001/internal/twiliosms"
	"github.com/IntakeDeskAI/Shrubb-sub001/internal/worker"
)

type fakeAI struct {
	chatReply   string
	chatErr     error
	imageURL    string
	imageErr    error
	chatCalls   int
	imageCalls  int
	lastUserMsg string
}

func (f *fakeAI) GenerateChat(ctx context.Context, systemPrompt, userPrompt string) (string, spend.Usage, error) {
	f.chatCalls++
	f.lastUserMsg = userPrompt
	if f.chatErr != nil {
		return "", spend.Usage{}, f.chatErr
	}
	return f.chatReply, spend.Usage{Model: "gpt-4o-mini", PromptTokens: 100, CompletionTokens: 50}, nil
}

func (f *fakeAI) GenerateImage(ctx context.Context, prompt string) (string, spend.Usage, error) {
	f.imageCalls++
	if f.imageErr != nil {
		return "", spend.Usage{}, f.imageErr
	}
	return f.imageURL, spend.Usage{Model: "dall-e-3", Images: 1}, nil
}

type testEnv struct {
	store *store.SQLiteStore
	ai    *fakeAI
	sms   *twiliosms.MockClient
	deps  Deps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "handlers_test.db")
	s, err := store.NewSQLiteStore(store.WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ai := &fakeAI{chatReply: "a plan", imageURL: "https://img.example.com/1.png"}
	sms := twiliosms.NewMockClient()
	return &testEnv{
		store: s,
		ai:    ai,
		sms:   sms,
		deps:  Deps{Store: s, AI: ai, SMS: sms, Spend: spend.NewGuard(s, 0)},
	}
}

func (e *testEnv) seedTenant(t *testing.T, tenant models.Tenant) {
	t.Helper()
	if err := e.store.SaveTenant(tenant); err != nil {
		t.Fatalf("SaveTenant failed: %v", err)
	}
}

func decodeResult(t *testing.T, raw json.RawMessage) map[string]string {
	t.Helper()
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("Result is not a string map: %v", err)
	}
	return m
}

func TestRegisterAllCoversEveryType(t *testing.T) {
	env := newTestEnv(t)
	r := worker.NewRegistry()
	RegisterAll(r, env.deps)

	for _, jt := range []models.JobType{
		models.JobTypePlanner, models.JobTypeVisualizer, models.JobTypeClassifier,
		models.JobTypeChatResponse, models.JobTypeProvisionPhone, models.JobTypeSendProposalNudge,
	} {
		if _, err := r.Resolve(jt); err != nil {
			t.Errorf("No handler registered for %s: %v", jt, err)
		}
	}
}

func TestPlannerProducesPlanAndChainsVisualizer(t *testing.T) {
	env := newTestEnv(t)
	env.seedTenant(t, models.Tenant{ID: "ten_1", Name: "Green Thumb"})
	if err := env.store.SaveProject(models.Project{ID: "proj_1", TenantID: "ten_1", Name: "Backyard", SiteNotes: "full sun, clay soil"}); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}
	env.ai.chatReply = "zone 1: natives"

	job := &models.Job{ID: "job_1", OwnerID: "user_1", TenantID: "ten_1", Payload: json.RawMessage(`{"project_id":"proj_1","design_run_id":"run_1"}`)}
	raw, err := env.deps.handlePlanner(context.Background(), job)
	if err != nil {
		t.Fatalf("handlePlanner failed: %v", err)
	}

	result := decodeResult(t, raw)
	if result["plan"] != "zone 1: natives" {
		t.Errorf("Expected plan in result, got %q", result["plan"])
	}
	if result["visualizer_job_id"] == "" {
		t.Error("Expected a chained visualizer job ID")
	}

	vizJob, err := env.store.GetJob(result["visualizer_job_id"])
	if err != nil || vizJob == nil {
		t.Fatalf("Chained visualizer job not found: %v", err)
	}
	if vizJob.Type != models.JobTypeVisualizer {
		t.Errorf("Expected visualizer job, got %s", vizJob.Type)
	}
	if vizJob.TenantID != "ten_1" {
		t.Errorf("Expected tenant carried to chained job, got %q", vizJob.TenantID)
	}

	total, err := env.store.TenantSpendTotalCents("ten_1")
	if err != nil {
		t.Fatalf("TenantSpendTotalCents failed: %v", err)
	}
	if total <= 0 {
		t.Errorf("Expected usage recorded, total is %d", total)
	}
}

func TestPlannerBlockedBySpendCap(t *testing.T) {
	env := newTestEnv(t)
	env.seedTenant(t, models.Tenant{ID: "ten_1", Name: "Capped", SpendCapCents: 1})
	if err := env.store.SaveProject(models.Project{ID: "proj_1", TenantID: "ten_1", Name: "Backyard"}); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}
	if err := env.store.AddUsageEntry(models.UsageEntry{TenantID: "ten_1", JobID: "job_0", Model: "gpt-4o-mini", CostCents: 5}); err != nil {
		t.Fatalf("AddUsageEntry failed: %v", err)
	}

	job := &models.Job{ID: "job_1", TenantID: "ten_1", Payload: json.RawMessage(`{"project_id":"proj_1","design_run_id":"run_1"}`)}
	_, err := env.deps.handlePlanner(context.Background(), job)
	if !errors.Is(err, ErrSpendCapExceeded) {
		t.Fatalf("Expected cap error, got %v", err)
	}
	if env.ai.chatCalls != 0 {
		t.Errorf("AI must not be called when the cap blocks, got %d calls", env.ai.chatCalls)
	}
}

func TestPlannerMissingProject(t *testing.T) {
	env := newTestEnv(t)
	job := &models.Job{ID: "job_1", TenantID: "ten_1", Payload: json.RawMessage(`{"project_id":"nope","design_run_id":"run_1"}`)}
	if _, err := env.deps.handlePlanner(context.Background(), job); err == nil {
		t.Fatal("Expected error for missing project")
	}
}

func TestVisualizerRendersImage(t *testing.T) {
	env := newTestEnv(t)
	env.seedTenant(t, models.Tenant{ID: "ten_1", Name: "Green Thumb"})

	job := &models.Job{ID: "job_1", TenantID: "ten_1", Payload: json.RawMessage(`{"project_id":"proj_1","design_run_id":"run_1","prompt":"zone plan"}`)}
	raw, err := env.deps.handleVisualizer(context.Background(), job)
	if err != nil {
		t.Fatalf("handleVisualizer failed: %v", err)
	}

	result := decodeResult(t, raw)
	if result["image_url"] != "https://img.example.com/1.png" {
		t.Errorf("Expected image URL in result, got %q", result["image_url"])
	}

	total, err := env.store.TenantSpendTotalCents("ten_1")
	if err != nil {
		t.Fatalf("TenantSpendTotalCents failed: %v", err)
	}
	if total <= 0 {
		t.Errorf("Expected image usage recorded, total is %d", total)
	}
}

func TestClassifierReturnsIntent(t *testing.T) {
	env := newTestEnv(t)
	env.seedTenant(t, models.Tenant{ID: "ten_1", Name: "Green Thumb"})
	env.ai.chatReply = "lead"

	job := &models.Job{ID: "job_1", TenantID: "ten_1", Payload: json.RawMessage(`{"message_id":"msg_1","text":"how much for a patio?"}`)}
	raw, err := env.deps.handleClassifier(context.Background(), job)
	if err != nil {
		t.Fatalf("handleClassifier failed: %v", err)
	}

	result := decodeResult(t, raw)
	if result["intent"] != "lead" {
		t.Errorf("Expected intent lead, got %q", result["intent"])
	}
	if env.ai.lastUserMsg != "how much for a patio?" {
		t.Errorf("Expected message text passed to AI, got %q", env.ai.lastUserMsg)
	}
}

func TestChatResponseSendsSMS(t *testing.T) {
	env := newTestEnv(t)
	env.seedTenant(t, models.Tenant{ID: "ten_1", Name: "Green Thumb", TwilioNumber: "+15550001111"})
	env.ai.chatReply = "We can stop by Tuesday."

	job := &models.Job{ID: "job_1", TenantID: "ten_1", Payload: json.RawMessage(`{"contact_phone":"+15550002222","message":"when can you come?"}`)}
	raw, err := env.deps.handleChatResponse(context.Background(), job)
	if err != nil {
		t.Fatalf("handleChatResponse failed: %v", err)
	}

	if len(env.sms.SentMessages) != 1 {
		t.Fatalf("Expected 1 SMS, got %d", len(env.sms.SentMessages))
	}
	sent := env.sms.SentMessages[0]
	if sent.From != "+15550001111" || sent.To != "+15550002222" {
		t.Errorf("Unexpected route %s -> %s", sent.From, sent.To)
	}
	if sent.Body != "We can stop by Tuesday." {
		t.Errorf("Unexpected body %q", sent.Body)
	}

	result := decodeResult(t, raw)
	if result["reply"] != "We can stop by Tuesday." {
		t.Errorf("Expected reply in result, got %q", result["reply"])
	}
}

func TestChatResponseRequiresTenantNumber(t *testing.T) {
	env := newTestEnv(t)
	env.seedTenant(t, models.Tenant{ID: "ten_1", Name: "Unprovisioned"})

	job := &models.Job{ID: "job_1", TenantID: "ten_1", Payload: json.RawMessage(`{"contact_phone":"+15550002222","message":"hi"}`)}
	if _, err := env.deps.handleChatResponse(context.Background(), job); err == nil {
		t.Fatal("Expected error for tenant without a number")
	}
	if env.ai.chatCalls != 0 {
		t.Error("AI must not be called when sending is impossible")
	}
}

func TestProvisionPhonePurchasesAndPersists(t *testing.T) {
	env := newTestEnv(t)
	env.seedTenant(t, models.Tenant{ID: "ten_1", Name: "Green Thumb"})
	env.sms.AvailableNumber = "+15035550123"

	job := &models.Job{ID: "job_1", TenantID: "ten_1", Payload: json.RawMessage(`{"area_code":"503"}`)}
	raw, err := env.deps.handleProvisionPhone(context.Background(), job)
	if err != nil {
		t.Fatalf("handleProvisionPhone failed: %v", err)
	}

	result := decodeResult(t, raw)
	if result["phone_number"] != "+15035550123" {
		t.Errorf("Expected purchased number in result, got %q", result["phone_number"])
	}
	if len(env.sms.PurchasedNumbers) != 1 {
		t.Fatalf("Expected 1 purchase, got %d", len(env.sms.PurchasedNumbers))
	}

	tenant, err := env.store.GetTenant("ten_1")
	if err != nil {
		t.Fatalf("GetTenant failed: %v", err)
	}
	if tenant.TwilioNumber != "+15035550123" {
		t.Errorf("Expected number persisted, got %q", tenant.TwilioNumber)
	}
}

func TestProvisionPhoneIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.seedTenant(t, models.Tenant{ID: "ten_1", Name: "Green Thumb", TwilioNumber: "+15550009999"})

	job := &models.Job{ID: "job_1", TenantID: "ten_1", Payload: json.RawMessage(`{"area_code":"503"}`)}
	raw, err := env.deps.handleProvisionPhone(context.Background(), job)
	if err != nil {
		t.Fatalf("handleProvisionPhone failed: %v", err)
	}

	result := decodeResult(t, raw)
	if result["phone_number"] != "+15550009999" {
		t.Errorf("Expected existing number returned, got %q", result["phone_number"])
	}
	if len(env.sms.PurchasedNumbers) != 0 {
		t.Errorf("Expected no purchase for provisioned tenant, got %d", len(env.sms.PurchasedNumbers))
	}
}

func seedNudge(t *testing.T, env *testEnv, proposalStatus models.ProposalStatus, contactPhone string) string {
	t.Helper()
	env.seedTenant(t, models.Tenant{ID: "ten_1", Name: "Green Thumb", TwilioNumber: "+15550001111"})
	if err := env.store.SaveProposal(models.Proposal{
		ID:           "prop_1",
		TenantID:     "ten_1",
		OwnerID:      "user_1",
		ContactPhone: contactPhone,
		Status:       proposalStatus,
	}); err != nil {
		t.Fatalf("SaveProposal failed: %v", err)
	}
	nudgeID, err := env.store.CreateNudge("ten_1", "prop_1", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("CreateNudge failed: %v", err)
	}
	return nudgeID
}

func nudgeJob(nudgeID string) *models.Job {
	payload, _ := json.Marshal(models.SendProposalNudgePayload{NudgeID: nudgeID, ProposalID: "prop_1"})
	return &models.Job{ID: "job_1", TenantID: "ten_1", Payload: payload}
}

func TestSendProposalNudge(t *testing.T) {
	env := newTestEnv(t)
	nudgeID := seedNudge(t, env, models.ProposalStatusSent, "+15550002222")

	raw, err := env.deps.handleSendProposalNudge(context.Background(), nudgeJob(nudgeID))
	if err != nil {
		t.Fatalf("handleSendProposalNudge failed: %v", err)
	}

	if len(env.sms.SentMessages) != 1 {
		t.Fatalf("Expected 1 SMS, got %d", len(env.sms.SentMessages))
	}
	if env.sms.SentMessages[0].To != "+15550002222" {
		t.Errorf("Unexpected recipient %s", env.sms.SentMessages[0].To)
	}

	nudge, err := env.store.GetNudge(nudgeID)
	if err != nil {
		t.Fatalf("GetNudge failed: %v", err)
	}
	if nudge.Status != models.NudgeStatusSent {
		t.Errorf("Expected nudge marked sent, got %s", nudge.Status)
	}

	result := decodeResult(t, raw)
	if result["sent_to"] != "+15550002222" {
		t.Errorf("Expected sent_to in result, got %q", result["sent_to"])
	}
}

func TestSendProposalNudgeSkipsAlreadySent(t *testing.T) {
	env := newTestEnv(t)
	nudgeID := seedNudge(t, env, models.ProposalStatusSent, "+15550002222")
	if err := env.store.MarkNudgeSent(nudgeID); err != nil {
		t.Fatalf("MarkNudgeSent failed: %v", err)
	}

	raw, err := env.deps.handleSendProposalNudge(context.Background(), nudgeJob(nudgeID))
	if err != nil {
		t.Fatalf("handleSendProposalNudge failed: %v", err)
	}
	if len(env.sms.SentMessages) != 0 {
		t.Errorf("Expected no SMS for handled nudge, got %d", len(env.sms.SentMessages))
	}
	if result := decodeResult(t, raw); result["skipped"] == "" {
		t.Error("Expected skipped marker in result")
	}
}

func TestSendProposalNudgeCancelsOnSettledProposal(t *testing.T) {
	env := newTestEnv(t)
	nudgeID := seedNudge(t, env, models.ProposalStatusAccepted, "+15550002222")

	if _, err := env.deps.handleSendProposalNudge(context.Background(), nudgeJob(nudgeID)); err != nil {
		t.Fatalf("handleSendProposalNudge failed: %v", err)
	}
	if len(env.sms.SentMessages) != 0 {
		t.Errorf("Expected no SMS for settled proposal, got %d", len(env.sms.SentMessages))
	}

	nudge, err := env.store.GetNudge(nudgeID)
	if err != nil {
		t.Fatalf("GetNudge failed: %v", err)
	}
	if nudge.Status != models.NudgeStatusCancelled {
		t.Errorf("Expected cancelled nudge, got %s", nudge.Status)
	}
}

func TestSendProposalNudgeSMSFailureRetriesLater(t *testing.T) {
	env := newTestEnv(t)
	nudgeID := seedNudge(t, env, models.ProposalStatusSent, "+15550002222")
	env.sms.SendErr = errors.New("carrier rejected")

	if _, err := env.deps.handleSendProposalNudge(context.Background(), nudgeJob(nudgeID)); err == nil {
		t.Fatal("Expected error when SMS fails")
	}

	// Still pending so the retry attempts delivery again.
	nudge, err := env.store.GetNudge(nudgeID)
	if err != nil {
		t.Fatalf("GetNudge failed: %v", err)
	}
	if nudge.Status != models.NudgeStatusPending {
		t.Errorf("Expected nudge still pending after SMS failure, got %s", nudge.Status)
	}
}
