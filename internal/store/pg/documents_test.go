package pg

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/research-core/core-permissions/internal/profiles"
)

func TestIsGroupMember(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select exists").
		WithArgs("u1", "PROFILE: Human Resources").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	member, err := store.IsGroupMember(context.Background(), "u1", "PROFILE: Human Resources")
	if err != nil {
		t.Fatal(err)
	}
	if !member {
		t.Fatal("expected membership")
	}
	expectationsMet(t, mock)
}

func TestContractFilePaths(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select f.file_path.*from contract_files").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"file_path"}).
			AddRow("uploads/contract/a.pdf").
			AddRow("uploads/contract/b.pdf"))

	paths, err := store.ContractFilePaths(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 || paths[0] != "uploads/contract/a.pdf" {
		t.Fatalf("unexpected paths: %v", paths)
	}
	expectationsMet(t, mock)
}

func TestPrivateCVPathNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select cv_path.*from private_info").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"cv_path"}))

	_, err := store.PrivateCVPath(context.Background(), "p1")
	if !errors.Is(err, profiles.ErrNotFound) {
		t.Fatalf("expected profiles.ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestOrderFilePathsCreatedBy(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select file_path from order_files where created_by").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"file_path"}).AddRow("uploads/order/o1.pdf"))

	paths, err := store.OrderFilePathsCreatedBy(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || paths[0] != "uploads/order/o1.pdf" {
		t.Fatalf("unexpected paths: %v", paths)
	}
	expectationsMet(t, mock)
}
