package models

import (
	"encoding/json"
	"strings"
	"testing"
)

// ── Null serialization ──

func TestAbsentValuesSerializeAsNull(t *testing.T) {
	c := Company{CompanyID: "ACME_CORP", Name: "Acme Corp"}
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("json.Marshal(Company) error: %v", err)
	}
	for _, field := range []string{`"sector":null`, `"market_cap_cr":null`, `"current_price":null`, `"description":null`} {
		if !strings.Contains(string(data), field) {
			t.Errorf("Company JSON %s missing %s", data, field)
		}
	}
}

func TestPeriodMetricsFlattens(t *testing.T) {
	pm := PeriodMetrics{
		Period: Period{
			CompanyID:  "ACME_CORP",
			PeriodEnd:  "2024-03-31",
			PeriodType: PeriodQuarter,
			Label:      "Mar 2024",
		},
		Metrics: Metrics{
			Sales:      Ptr(int64(1000)),
			NetProfit:  Ptr(int64(150)),
			OPMPercent: Ptr(int64(20)),
			EPS:        Ptr(5.0),
		},
	}
	data, err := json.Marshal(pm)
	if err != nil {
		t.Fatalf("json.Marshal(PeriodMetrics) error: %v", err)
	}

	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatalf("json.Unmarshal error: %v", err)
	}
	if flat["period_end"] != "2024-03-31" {
		t.Errorf("period_end: got %v", flat["period_end"])
	}
	if flat["period_type"] != "quarter" {
		t.Errorf("period_type: got %v", flat["period_type"])
	}
	if flat["net_profit"] != float64(150) {
		t.Errorf("net_profit: got %v", flat["net_profit"])
	}
	if v, ok := flat["operating_profit"]; !ok || v != nil {
		t.Errorf("operating_profit: got %v (present=%v), want null", v, ok)
	}
	if _, ok := flat["run_id"]; ok {
		t.Error("run_id should be omitted when empty")
	}
}

func TestPtr(t *testing.T) {
	p := Ptr("x")
	if p == nil || *p != "x" {
		t.Errorf("Ptr: got %v", p)
	}
	a, b := Ptr(1), Ptr(1)
	if a == b {
		t.Error("Ptr should return distinct pointers")
	}
}
