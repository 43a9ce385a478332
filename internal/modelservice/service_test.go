package modelservice

import "testing"

func TestResolve_FoundationSentinel(t *testing.T) {
	got := Resolve("foundation", Availability{SystemDefault: true, InstalledModels: []string{"llama3"}})
	want := Resolution{Service: ServiceSystemDefault, EffectiveModel: "foundation"}
	if got != want {
		t.Errorf("Resolve() = %+v, want %+v", got, want)
	}
}

func TestResolve_FoundationUnavailableFallsThrough(t *testing.T) {
	got := Resolve("foundation", Availability{SystemDefault: false, InstalledModels: []string{"llama3"}})
	if got.Resolved() {
		t.Errorf("Resolve() = %+v, want unresolved (no local match for literal \"foundation\")", got)
	}
}

func TestResolve_LocalModelMatch(t *testing.T) {
	got := Resolve("Llama3:Latest", Availability{InstalledModels: []string{"llama3:latest"}})
	want := Resolution{Service: ServiceLocalMLX, EffectiveModel: "llama3:latest"}
	if got != want {
		t.Errorf("Resolve() = %+v, want %+v", got, want)
	}
}

func TestResolve_LocalModelMatchStripsTag(t *testing.T) {
	got := Resolve("llama3", Availability{InstalledModels: []string{"llama3:8b"}})
	want := Resolution{Service: ServiceLocalMLX, EffectiveModel: "llama3:8b"}
	if got != want {
		t.Errorf("Resolve() = %+v, want %+v", got, want)
	}
}

func TestResolve_NoLocalModelsFallsBackToSystemDefault(t *testing.T) {
	got := Resolve("anything", Availability{SystemDefault: true})
	want := Resolution{Service: ServiceSystemDefault, EffectiveModel: "foundation"}
	if got != want {
		t.Errorf("Resolve() = %+v, want %+v", got, want)
	}
}

func TestResolve_None(t *testing.T) {
	got := Resolve("unknown-model", Availability{InstalledModels: []string{"llama3"}})
	if got.Resolved() {
		t.Errorf("Resolve() = %+v, want unresolved", got)
	}
}

func TestAuditLog_RecordExplainAndStats(t *testing.T) {
	dir := t.TempDir()
	log, err := NewAuditLog(dir + "/router-audit.db")
	if err != nil {
		t.Fatalf("NewAuditLog: %v", err)
	}
	defer log.Close()

	if err := log.Record(Decision{
		RequestID:       "r1",
		RequestedModel:  "llama3",
		ResolvedService: ServiceLocalMLX,
		EffectiveModel:  "llama3:8b",
		Reasoning:       "matched installed model",
	}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := log.Record(Decision{
		RequestID:       "r2",
		RequestedModel:  "foundation",
		ResolvedService: ServiceSystemDefault,
		EffectiveModel:  "foundation",
		Reasoning:       "foundation sentinel",
	}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	d, err := log.Explain("r1")
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if d == nil || d.EffectiveModel != "llama3:8b" {
		t.Errorf("Explain(r1) = %+v, want effective_model llama3:8b", d)
	}

	if err := log.RecordOutcome("r1", 42, true); err != nil {
		t.Fatalf("RecordOutcome: %v", err)
	}
	d, err = log.Explain("r1")
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if d.LatencyMs != 42 || d.Success == nil || !*d.Success {
		t.Errorf("Explain(r1) after RecordOutcome = %+v", d)
	}

	recent, err := log.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("Recent() returned %d decisions, want 2", len(recent))
	}

	stats, err := log.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalRequests != 2 {
		t.Errorf("Stats().TotalRequests = %d, want 2", stats.TotalRequests)
	}
	if stats.ServiceCounts[string(ServiceLocalMLX)] != 1 {
		t.Errorf("Stats().ServiceCounts[LocalMLX] = %d, want 1", stats.ServiceCounts[string(ServiceLocalMLX)])
	}
}

func TestAuditLog_ExplainMissing(t *testing.T) {
	dir := t.TempDir()
	log, err := NewAuditLog(dir + "/router-audit.db")
	if err != nil {
		t.Fatalf("NewAuditLog: %v", err)
	}
	defer log.Close()

	d, err := log.Explain("does-not-exist")
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if d != nil {
		t.Errorf("Explain(missing) = %+v, want nil", d)
	}
}
