package handler

import "testing"

func TestExtractDecisionJSONFencedBlock(t *testing.T) {
	text := "Here is the JSON response:\n```json\n{\"instanceId\": \"p.1\", \"instanceName\": \"n\", \"processDefinitionId\": \"p\"}\n```\n"
	obj, err := ExtractDecisionJSON(text)
	if err != nil {
		t.Fatalf("ExtractDecisionJSON: %v", err)
	}
	if obj["instanceId"] != "p.1" {
		t.Fatalf("got %v", obj)
	}
}

func TestExtractDecisionJSONBraceSubstring(t *testing.T) {
	text := `blah blah {"instanceId": "p.1", "instanceName": "n", "processDefinitionId": "p"} trailing noise`
	obj, err := ExtractDecisionJSON(text)
	if err != nil {
		t.Fatalf("ExtractDecisionJSON: %v", err)
	}
	if obj["processDefinitionId"] != "p" {
		t.Fatalf("got %v", obj)
	}
}

func TestExtractDecisionJSONRepairsDefects(t *testing.T) {
	text := `{'instanceId': 'p.1', 'instanceName': 'n', 'processDefinitionId': 'p',}`
	obj, err := ExtractDecisionJSON(text)
	if err != nil {
		t.Fatalf("ExtractDecisionJSON: %v", err)
	}
	if obj["instanceId"] != "p.1" {
		t.Fatalf("got %v", obj)
	}
}

func TestExtractDecisionJSONUnparsable(t *testing.T) {
	if _, err := ExtractDecisionJSON("no json here at all"); err == nil {
		t.Fatal("expected an error for unparsable text")
	}
}

func TestParseDecisionValidatesSchema(t *testing.T) {
	text := `{"instanceName": "n", "processDefinitionId": "p"}` // missing instanceId
	if _, err := ParseDecision(text); err == nil {
		t.Fatal("expected schema validation error for missing instanceId")
	}
}

func TestParseDecisionSucceeds(t *testing.T) {
	text := `{
		"instanceId": "p.1",
		"instanceName": "n",
		"processDefinitionId": "p",
		"nextActivities": [{"nextActivityId": "b", "result": "IN_PROGRESS"}],
		"completedActivities": [{"completedActivityId": "a", "result": "DONE"}]
	}`
	d, err := ParseDecision(text)
	if err != nil {
		t.Fatalf("ParseDecision: %v", err)
	}
	if len(d.NextActivities) != 1 || d.NextActivities[0].NextActivityID != "b" {
		t.Fatalf("got %+v", d.NextActivities)
	}
	if len(d.CompletedActivities) != 1 {
		t.Fatalf("got %+v", d.CompletedActivities)
	}
}

func TestResolveAssigneesClassifiesTypes(t *testing.T) {
	got := ResolveAssignees("alice@example.com, external_customer, agent:triage, a2a:bot1, bob")
	want := []struct {
		name string
		typ  string
	}{
		{"alice@example.com", AssigneeUser},
		{"external_customer", AssigneeExternalCustomer},
		{"triage", AssigneeAgent},
		{"bot1", AssigneeA2A},
		{"bob", AssigneeUnknown},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d assignees, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Name != w.name || got[i].Type != w.typ {
			t.Errorf("assignee %d: got %+v, want {%s %s}", i, got[i], w.name, w.typ)
		}
	}
}
