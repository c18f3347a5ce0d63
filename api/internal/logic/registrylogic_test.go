package logic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/qx/ledgerbot/api/internal/model"
	"github.com/qx/ledgerbot/api/internal/types"
)

func TestRosterResolve(t *testing.T) {
	roster := NewRoster(testChat, []model.Member{
		{ID: alice, DisplayName: "Alice", Handle: "Alice_W"},
		{ID: bob, DisplayName: "Bob", Aliases: []string{"Bobby"}},
		{ID: carol, DisplayName: "Alice"},
	})

	tests := []struct {
		token   string
		want    int64
		wantErr bool
	}{
		{token: "@Alice_W", want: alice},
		{token: "alice_w", want: alice},
		{token: "@alice", want: alice},
		{token: "ALICE", want: alice},
		{token: "bobby", want: bob},
		{token: "@3", want: bob},
		{token: "#4", want: carol},
		{token: "@ghost", wantErr: true},
		{token: "@", wantErr: true},
		{token: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := roster.Resolve(tt.token)
			if tt.wantErr {
				if !errors.Is(err, model.ErrMemberNotFound) {
					t.Fatalf("Resolve(%q) error = %v, want ErrMemberNotFound", tt.token, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.token, err)
			}
			if got.ID != tt.want {
				t.Errorf("Resolve(%q) = %d, want %d", tt.token, got.ID, tt.want)
			}
		})
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	svcCtx := newTestContext(clock)
	registry := NewRegistryLogic(context.Background(), svcCtx)

	first, err := registry.Register(testChat, aliceID)
	if err != nil {
		t.Fatal(err)
	}
	clock.now = clock.now.Add(time.Hour)
	second, err := registry.Register(testChat, aliceID)
	if err != nil {
		t.Fatal(err)
	}
	if !first.JoinedAt.Equal(second.JoinedAt) || first.ID != second.ID {
		t.Errorf("second register returned %+v, want %+v", second, first)
	}

	renamed := aliceID
	renamed.FirstName = "Ali"
	renamed.Username = "ali"
	third, err := registry.Register(testChat, renamed)
	if err != nil {
		t.Fatal(err)
	}
	if third.DisplayName != "Ali" || third.Handle != "ali" || !third.JoinedAt.Equal(first.JoinedAt) {
		t.Errorf("rename returned %+v", third)
	}

	roster, err := registry.Roster(testChat)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(roster.Members()); n != 1 {
		t.Fatalf("roster has %d members, want 1", n)
	}
	if _, err := roster.Resolve("@ali"); err != nil {
		t.Errorf("Resolve(@ali) error = %v", err)
	}
}

func TestRegisterRejectsAnonymous(t *testing.T) {
	svcCtx := newTestContext(&fakeClock{now: time.Now()})
	if _, err := NewRegistryLogic(context.Background(), svcCtx).Register(testChat, types.Identity{}); err == nil {
		t.Error("Register() with no user id succeeded")
	}
}
