package models

import (
	"reflect"
	"strings"
	"testing"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestConversation_Fields(t *testing.T) {
	typ := reflect.TypeOf(Conversation{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "size:64")
	assertGormTag(t, typ, "CustomerID", "index")
	assertGormTag(t, typ, "State", "not null")
	assertGormTag(t, typ, "State", "index")
	assertGormTag(t, typ, "StartedAt", "index")
	assertGormTag(t, typ, "EndReason", "size:32")
	assertGormTag(t, typ, "Messages", "foreignKey:ConversationID")

	assertFieldType(t, typ, "EndedAt", "*time.Time")
	assertFieldType(t, typ, "LastMessageAt", "time.Time")
}

func TestMessage_Fields(t *testing.T) {
	typ := reflect.TypeOf(Message{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "autoIncrement")
	assertGormTag(t, typ, "ConversationID", "not null")
	assertGormTag(t, typ, "ConversationID", "index")
	assertGormTag(t, typ, "Sender", "size:16")
	assertGormTag(t, typ, "Body", "type:text")
	assertGormTag(t, typ, "Intent", "size:48")

	assertFieldType(t, typ, "ID", "uint")
}

func TestCustomer_Fields(t *testing.T) {
	typ := reflect.TypeOf(Customer{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "Name", "not null")
	assertGormTag(t, typ, "Name", "index")
	assertGormTag(t, typ, "Email", "index")
	assertGormTag(t, typ, "Login", "index")
	assertGormTag(t, typ, "SearchKey", "index")

	assertFieldType(t, typ, "VIP", "bool")
	assertFieldType(t, typ, "RegisteredAt", "*time.Time")
}

func TestAgent_Fields(t *testing.T) {
	typ := reflect.TypeOf(Agent{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "Tier", "default:junior")
	assertGormTag(t, typ, "Online", "index")
	assertGormTag(t, typ, "MaxConcurrent", "default:3")
	assertGormTag(t, typ, "ActiveCount", "default:0")

	assertFieldType(t, typ, "MaxConcurrent", "int")
	assertFieldType(t, typ, "ActiveCount", "int")
	assertFieldType(t, typ, "LastAssignedAt", "*time.Time")
}

func TestAssignment_Fields(t *testing.T) {
	typ := reflect.TypeOf(Assignment{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ConversationID", "index")
	assertGormTag(t, typ, "AgentID", "index")
	assertGormTag(t, typ, "Status", "default:active")
	assertGormTag(t, typ, "Status", "index")

	assertFieldType(t, typ, "FinalizedAt", "*time.Time")
}

func TestConstants(t *testing.T) {
	if AssignmentActive != "active" {
		t.Errorf("AssignmentActive = %q, want %q", AssignmentActive, "active")
	}
	if AssignmentFinalized != "finalized" {
		t.Errorf("AssignmentFinalized = %q, want %q", AssignmentFinalized, "finalized")
	}
	senders := []string{SenderCustomer, SenderBot, SenderSystem, SenderAgent}
	seen := make(map[string]bool)
	for _, s := range senders {
		if seen[s] {
			t.Errorf("duplicate sender constant %q", s)
		}
		seen[s] = true
		if len(s) > 16 {
			t.Errorf("sender %q exceeds column size 16", s)
		}
	}
}
