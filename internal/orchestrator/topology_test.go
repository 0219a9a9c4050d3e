package orchestrator

import (
	"testing"

	"github.com/dbferry/dbferry/internal/descriptor"
)

func table(name string, refs ...string) descriptor.Table {
	t := descriptor.Table{TargetName: name}
	for _, r := range refs {
		t.ForeignKeys = append(t.ForeignKeys, descriptor.ForeignKey{
			TargetName: name + "_" + r + "_fk",
			RefTable:   r,
		})
	}
	return t
}

func indexOfTable(tables []descriptor.Table, name string) int {
	for i, t := range tables {
		if t.TargetName == name {
			return i
		}
	}
	return -1
}

func TestOrderLinearChain(t *testing.T) {
	// orders -> customers -> (no deps); order_items -> orders
	tables := []descriptor.Table{
		table("order_items", "orders"),
		table("orders", "customers"),
		table("customers"),
	}
	ordered, deferred := Order(tables)

	if len(ordered) != 3 {
		t.Fatalf("got %d tables, want 3", len(ordered))
	}
	if len(deferred) != 0 {
		t.Errorf("expected no deferred FKs in an acyclic graph, got %v", deferred)
	}

	posCustomers := indexOfTable(ordered, "customers")
	posOrders := indexOfTable(ordered, "orders")
	posItems := indexOfTable(ordered, "order_items")

	if !(posCustomers < posOrders && posOrders < posItems) {
		t.Errorf("expected customers < orders < order_items, got order %v", tableNames(ordered))
	}
}

func TestOrderCycleDefersFKs(t *testing.T) {
	// employees.manager_id -> employees (self cycle handled elsewhere) and a
	// two-table mutual cycle: departments.head_id -> employees,
	// employees.department_id -> departments.
	tables := []descriptor.Table{
		table("departments", "employees"),
		table("employees", "departments"),
	}
	ordered, deferred := Order(tables)

	if len(ordered) != 2 {
		t.Fatalf("got %d tables, want 2", len(ordered))
	}
	if len(deferred["departments"]) != 1 || len(deferred["employees"]) != 1 {
		t.Errorf("expected both cyclic tables to have deferred FKs, got %v", deferred)
	}
}

func TestOrderSelfReferenceDefers(t *testing.T) {
	tables := []descriptor.Table{table("employees", "employees")}
	ordered, deferred := Order(tables)

	if len(ordered) != 1 {
		t.Fatalf("got %d tables, want 1", len(ordered))
	}
	if len(deferred["employees"]) != 1 {
		t.Errorf("expected self-referencing FK deferred, got %v", deferred)
	}
}

func TestOrderIgnoresDanglingReference(t *testing.T) {
	// A table referencing something outside the selected set shouldn't
	// block ordering or panic.
	tables := []descriptor.Table{table("orders", "customers")}
	ordered, deferred := Order(tables)

	if len(ordered) != 1 {
		t.Fatalf("got %d tables, want 1", len(ordered))
	}
	if len(deferred) != 0 {
		t.Errorf("expected no deferred FKs for an out-of-set reference, got %v", deferred)
	}
}

func tableNames(tables []descriptor.Table) []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.TargetName
	}
	return names
}
