package core

import (
	"encoding/json"
	"testing"
)

func TestTransactionDecodesPopulatedCategory(t *testing.T) {
	body := `{
		"_id": "t1",
		"amount": 120.5,
		"type": "expense",
		"category": {"_id": "c1", "name": "Food", "type": "expense", "icon": "🍜", "color": "#f00"},
		"description": "lunch",
		"date": "2025-03-04T00:00:00.000Z"
	}`
	var tx Transaction
	if err := json.Unmarshal([]byte(body), &tx); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tx.Category.ID != "c1" || tx.Category.Name() != "Food" || tx.Category.Icon() != "🍜" {
		t.Fatalf("unexpected category ref: %+v", tx.Category)
	}
	if tx.Amount.Cents != 12050 || tx.Date.String() != "2025-03-04" {
		t.Fatalf("unexpected amount/date: %d %s", tx.Amount.Cents, tx.Date)
	}
}

func TestTransactionDecodesCategoryID(t *testing.T) {
	var tx Transaction
	if err := json.Unmarshal([]byte(`{"_id":"t2","category":"c9","date":"2025-01-02"}`), &tx); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tx.Category.ID != "c9" || tx.Category.Category != nil {
		t.Fatalf("unexpected ref: %+v", tx.Category)
	}
	if tx.Category.Icon() != DefaultCategoryIcon || tx.Category.Name() != "c9" {
		t.Fatalf("unexpected fallbacks: %s %s", tx.Category.Icon(), tx.Category.Name())
	}
}

func TestTransactionInputEncoding(t *testing.T) {
	in := TransactionInput{
		Amount:   Money{Cents: 5025},
		Type:     Income,
		Category: "c1",
		Date:     NewDate(2025, 6, 30),
	}
	out, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"amount":50.25,"type":"income","category":"c1","description":"","note":"","date":"2025-06-30"}`
	if string(out) != want {
		t.Fatalf("marshal = %s\nwant %s", out, want)
	}
}

func TestUserAcceptsBothIDKeys(t *testing.T) {
	var a, b User
	_ = json.Unmarshal([]byte(`{"id":"u1","name":"A","email":"a@x"}`), &a)
	_ = json.Unmarshal([]byte(`{"_id":"u2","name":"B","email":"b@x"}`), &b)
	if a.ID != "u1" || b.ID != "u2" || b.Email != "b@x" {
		t.Fatalf("unexpected users: %+v %+v", a, b)
	}
}

func TestMonthLabel(t *testing.T) {
	var points []MonthTrend
	if err := json.Unmarshal([]byte(`[{"month":1,"income":10},{"month":"Feb","expense":2}]`), &points); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if points[0].Month != "Jan" || points[1].Month != "Feb" || points[0].Income.Cents != 1000 {
		t.Fatalf("unexpected points: %+v", points)
	}
}
