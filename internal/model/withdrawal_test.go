package model

import "testing"

func TestCanWithdrawalTransition(t *testing.T) {
	tests := []struct {
		from string
		to   string
		want bool
	}{
		{WithdrawalStatusPending, WithdrawalStatusProcessed, true},
		{WithdrawalStatusPending, WithdrawalStatusRejected, true},
		{WithdrawalStatusProcessed, WithdrawalStatusRejected, false},
		{WithdrawalStatusProcessed, WithdrawalStatusPending, false},
		{WithdrawalStatusRejected, WithdrawalStatusProcessed, false},
		{WithdrawalStatusRejected, WithdrawalStatusPending, false},
		{"UNKNOWN", WithdrawalStatusProcessed, false},
	}
	for _, tt := range tests {
		if got := CanWithdrawalTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanWithdrawalTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
