package extraction

import (
	"testing"

	"github.com/foresight/docintel/internal/domain/analysis"
	"github.com/foresight/docintel/internal/domain/classification"
)

const cardText = "MEMBER ID: A1234567B GROUP NUMBER: 55443 RX BIN: 610279 EFFECTIVE 01/01/2024"

func line(id, text string) analysis.Block {
	return analysis.Block{ID: id, Type: analysis.BlockLine, Text: text, Confidence: 99}
}

func word(id, text string) analysis.Block {
	return analysis.Block{ID: id, Type: analysis.BlockWord, Text: text, Confidence: 99}
}

// kv builds a KEY node with word children and a VALUE node with word children.
func kv(keyID, valueID string, keyConf float64, keyWords, valueWords []analysis.Block) []analysis.Block {
	var keyChildren, valueChildren []string
	for _, w := range keyWords {
		keyChildren = append(keyChildren, w.ID)
	}
	for _, w := range valueWords {
		valueChildren = append(valueChildren, w.ID)
	}
	out := []analysis.Block{
		{
			ID: keyID, Type: analysis.BlockKeyValueSet, EntityTypes: []string{analysis.EntityKey}, Confidence: keyConf,
			Relationships: []analysis.Relationship{
				{Type: analysis.RelValue, IDs: []string{valueID}},
				{Type: analysis.RelChild, IDs: keyChildren},
			},
			Box: &analysis.BoundingBox{Width: 0.2, Height: 0.05, Left: 0.1, Top: 0.3},
		},
		{
			ID: valueID, Type: analysis.BlockKeyValueSet, EntityTypes: []string{analysis.EntityVal},
			Relationships: []analysis.Relationship{{Type: analysis.RelChild, IDs: valueChildren}},
		},
	}
	out = append(out, keyWords...)
	return append(out, valueWords...)
}

func find(fields []Field, c Category) []Field {
	var out []Field
	for _, f := range fields {
		if f.Category == c {
			out = append(out, f)
		}
	}
	return out
}

func TestFullText_JoinsLinesOnly(t *testing.T) {
	blocks := []analysis.Block{
		{ID: "p", Type: analysis.BlockPage},
		line("l1", "MEMBER ID: A1234567B"),
		word("w1", "MEMBER"),
		line("l2", "  "),
		line("l3", "GROUP NUMBER: 55443"),
	}
	if got := FullText(blocks); got != "MEMBER ID: A1234567B GROUP NUMBER: 55443" {
		t.Errorf("unexpected full text %q", got)
	}
}

func TestTextFields_InsuranceCard(t *testing.T) {
	fields := TextFields(cardText, ProfileInsurance)
	want := map[Category]string{
		MemberID:      "A1234567B",
		GroupNumber:   "55443",
		RxBIN:         "610279",
		EffectiveDate: "01/01/2024",
	}
	for c, v := range want {
		got := find(fields, c)
		if len(got) != 1 || got[0].Value != v {
			t.Errorf("%s: expected %q, got %+v", c, v, got)
			continue
		}
		if got[0].Confidence != 0.8 || got[0].Source != SourceText {
			t.Errorf("%s: expected text source with 0.8 confidence, got %+v", c, got[0])
		}
	}
	if len(find(fields, RxPCN)) != 0 || len(find(fields, PayerID)) != 0 {
		t.Errorf("unexpected fields %+v", fields)
	}
}

func TestTextFields_FirstAlternativeWins(t *testing.T) {
	text := "ID 99887766554 MEMBER ID: ZX12345678"
	got := find(TextFields(text, ProfileInsurance), MemberID)
	if len(got) != 1 || got[0].Value != "ZX12345678" {
		t.Fatalf("expected the labeled member id to win, got %+v", got)
	}
}

func TestTextFields_Identity(t *testing.T) {
	text := "DRIVER LICENSE DL: D12345678 DOB: 04/15/1985 EXP 04/15/2030 SPRINGFIELD IL 62701"
	fields := TextFields(text, ProfileIdentity)
	want := map[Category]string{
		LicenseNumber:  "D12345678",
		DateOfBirth:    "04/15/1985",
		ExpirationDate: "04/15/2030",
		State:          "IL",
	}
	for c, v := range want {
		got := find(fields, c)
		if len(got) != 1 || got[0].Value != v {
			t.Errorf("%s: expected %q, got %+v", c, v, got)
		}
	}
}

func TestTextFields_ProfileNone(t *testing.T) {
	if fields := TextFields(cardText, ProfileNone); len(fields) != 0 {
		t.Errorf("expected no text fields without a pattern library, got %+v", fields)
	}
}

func TestFormFields_WalksKeyValueGraph(t *testing.T) {
	blocks := kv("k1", "v1", 95,
		[]analysis.Block{word("kw1", "Group"), word("kw2", "#:")},
		[]analysis.Block{word("vw1", "GRP-77")})
	blocks = append(blocks, kv("k2", "v2", 0,
		[]analysis.Block{word("kw3", "Favorite"), word("kw4", "Color")},
		[]analysis.Block{word("vw2", "Blue")})...)

	fields := FormFields(blocks)
	if len(fields) != 1 {
		t.Fatalf("expected only the mapped key, got %+v", fields)
	}
	f := fields[0]
	if f.Category != GroupNumber || f.Value != "GRP-77" || f.Source != SourceForm {
		t.Errorf("unexpected field %+v", f)
	}
	if f.Confidence != 0.95 {
		t.Errorf("expected key confidence scaled to 0.95, got %v", f.Confidence)
	}
	if f.BoundingBox == nil || f.BoundingBox.Top != 0.3 {
		t.Errorf("expected key bounding box, got %+v", f.BoundingBox)
	}
}

func TestFormFields_FallbackConfidenceAndEmptyValue(t *testing.T) {
	blocks := kv("k1", "v1", 0, []analysis.Block{word("kw1", "RX"), word("kw2", "BIN")}, []analysis.Block{word("vw1", "610279")})
	blocks = append(blocks, kv("k2", "v2", 90, []analysis.Block{word("kw3", "PCN")}, nil)...)

	fields := FormFields(blocks)
	if len(fields) != 1 {
		t.Fatalf("expected the empty value to be dropped, got %+v", fields)
	}
	if fields[0].Category != RxBIN || fields[0].Confidence != 0.7 {
		t.Errorf("expected rx_bin with fallback confidence, got %+v", fields[0])
	}
}

func TestCategoryForLabel(t *testing.T) {
	tests := []struct {
		label string
		want  Category
		ok    bool
	}{
		{"Member ID:", MemberID, true},
		{"GROUP #", GroupNumber, true},
		{"Rx Group", RxGroup, true},
		{"RxBIN", "", false},
		{"Rx BIN:", RxBIN, true},
		{"Payer ID", PayerID, true},
		{"Primary Care Copay", CopayPCP, true},
		{"Specialist Visit", CopaySpecialist, true},
		{"Provider", "", false},
		{"Subscriber First Name", SubscriberFirstName, true},
		{"Annual Deductible (In-Network)", Deductible, true},
		{"Group Name", "", false},
		{"Employer Group Name:", "", false},
		{"Employer Group", "", false},
		{"Group", GroupNumber, true},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := CategoryForLabel(tt.label)
		if ok != tt.ok || got != tt.want {
			t.Errorf("CategoryForLabel(%q) = %q, %v; want %q, %v", tt.label, got, ok, tt.want, tt.ok)
		}
	}
}

func TestExtract_DedupesAcrossStrategies(t *testing.T) {
	blocks := kv("k1", "v1", 97,
		[]analysis.Block{word("kw1", "Member"), word("kw2", "ID")},
		[]analysis.Block{word("vw1", "A1234567")})
	blocks = append(blocks, line("l1", "MEMBER ID: A1234567 GROUP NUMBER: 55443 RX BIN: 610279"))

	res := NewEngine().Extract(blocks, ProfileInsurance)
	ids := find(res.Fields, MemberID)
	if len(ids) != 1 {
		t.Fatalf("expected member_id A1234567 once, got %+v", ids)
	}
	if ids[0].Source != SourceForm {
		t.Errorf("expected the form-derived copy to survive, got %+v", ids[0])
	}
	if res.FullText == "" {
		t.Error("expected full text")
	}
}

func TestExtract_KeepsDisagreements(t *testing.T) {
	blocks := kv("k1", "v1", 97,
		[]analysis.Block{word("kw1", "Group")},
		[]analysis.Block{word("vw1", "G-100")})
	blocks = append(blocks, line("l1", "GROUP NUMBER: 55443"))

	res := NewEngine().Extract(blocks, ProfileInsurance)
	groups := find(res.Fields, GroupNumber)
	if len(groups) != 2 {
		t.Fatalf("expected both disagreeing group numbers, got %+v", groups)
	}

	resolved := Resolve(res.Fields)
	if resolved[GroupNumber].Value != "G-100" {
		t.Errorf("expected the form value to win, got %+v", resolved[GroupNumber])
	}
}

func TestExtract_NoDuplicatePairs(t *testing.T) {
	blocks := []analysis.Block{line("l1", cardText), line("l2", cardText)}
	blocks = append(blocks, kv("k1", "v1", 90, []analysis.Block{word("kw1", "BIN")}, []analysis.Block{word("vw1", "610279")})...)
	blocks = append(blocks, kv("k2", "v2", 80, []analysis.Block{word("kw2", "Rx"), word("kw3", "BIN")}, []analysis.Block{word("vw2", "610279")})...)

	res := NewEngine().Extract(blocks, ProfileInsurance)
	seen := make(map[string]bool)
	for _, f := range res.Fields {
		k := string(f.Category) + "\x00" + f.Value
		if seen[k] {
			t.Errorf("duplicate field %s=%s", f.Category, f.Value)
		}
		seen[k] = true
	}
}

func TestResolve_PrefersConfidenceThenOrder(t *testing.T) {
	fields := []Field{
		{Category: PayerName, Value: "Aetna", Confidence: 0.6, Source: SourceForm},
		{Category: PayerName, Value: "Aetna Inc", Confidence: 0.9, Source: SourceForm},
		{Category: PayerName, Value: "AETNA", Confidence: 0.9, Source: SourceForm},
		{Category: Phone, Value: "800-555-0100", Confidence: 0.8, Source: SourceText},
	}
	got := Resolve(fields)
	if got[PayerName].Value != "Aetna Inc" {
		t.Errorf("expected higher confidence then first seen, got %+v", got[PayerName])
	}
	if got[Phone].Value != "800-555-0100" {
		t.Errorf("expected text field when no form field exists, got %+v", got[Phone])
	}
}

func TestProfileFor(t *testing.T) {
	tests := map[classification.Type]Profile{
		classification.InsuranceCard:    ProfileInsurance,
		classification.PharmacyBenefits: ProfileInsurance,
		classification.IDVerification:   ProfileIdentity,
		classification.Other:            ProfileNone,
	}
	for in, want := range tests {
		if got := ProfileFor(in); got != want {
			t.Errorf("ProfileFor(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestCategory_Valid(t *testing.T) {
	for _, c := range Categories() {
		if !c.Valid() {
			t.Errorf("%s should be valid", c)
		}
	}
	if Category("favorite_color").Valid() {
		t.Error("unknown category should not be valid")
	}
}

func TestExtract_GroupNameIsNotAGroupNumber(t *testing.T) {
	blocks := kv("k1", "v1", 95,
		[]analysis.Block{word("kw1", "Group"), word("kw2", "Name:")},
		[]analysis.Block{word("vw1", "ACME"), word("vw2", "CORP")})
	blocks = append(blocks, kv("k2", "v2", 95,
		[]analysis.Block{word("kw3", "Group")},
		[]analysis.Block{word("vw3", "55443")})...)

	res := NewEngine().Extract(blocks, ProfileInsurance)
	groups := find(res.Fields, GroupNumber)
	if len(groups) != 1 || groups[0].Value != "55443" {
		t.Fatalf("expected only the real group number, got %+v", groups)
	}
}
