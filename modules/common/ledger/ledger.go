// Package ledger is the credit ledger adapter. The balance lives in the
// profiles table and is mutated only through two Postgres functions, so a
// debit is a single conditional UPDATE at the data layer and two concurrent
// requests from the same account can never both pass a stale balance check:
//
//	create or replace function reserve_credits(p_user_id uuid, p_amount int)
//	returns int language sql as $$
//	  with debited as (
//	    update profiles
//	       set credits_remaining = credits_remaining - p_amount
//	     where id = p_user_id and credits_remaining >= p_amount
//	 returning credits_remaining
//	  )
//	  select coalesce((select credits_remaining from debited), -1);
//	$$;
//
//	create or replace function refund_credits(p_user_id uuid, p_amount int)
//	returns int language sql as $$
//	  update profiles
//	     set credits_remaining = credits_remaining + p_amount
//	   where id = p_user_id
//	 returning credits_remaining;
//	$$;
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/supabase-community/supabase-go"

	"github.com/kaiquenogueira/dream-space-sub000/modules/common/config"
	"github.com/kaiquenogueira/dream-space-sub000/modules/pipeline"
)

// Ledger - atomic reserve/refund against the prepaid credit balance.
type Ledger struct {
	supabase *supabase.Client
}

var _ pipeline.CreditLedger = (*Ledger)(nil)

// NewLedger - ledger client against the configured Supabase deployment.
func NewLedger() *Ledger {
	cfg := config.GetConfig()

	supabaseClient, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		log.Printf("❌ [Ledger] Failed to create Supabase client: %v", err)
		return nil
	}

	return &Ledger{supabase: supabaseClient}
}

// Reserve - atomically debit amount from the account balance. Returns the new
// balance, or pipeline.ErrInsufficientCredits with the balance untouched.
func (l *Ledger) Reserve(ctx context.Context, accountID string, amount int) (int, error) {
	result := l.supabase.Rpc("reserve_credits", "", map[string]interface{}{
		"p_user_id": accountID,
		"p_amount":  amount,
	})
	if result == "" {
		return 0, fmt.Errorf("reserve_credits rpc failed for %s", accountID)
	}

	var balance int
	if err := json.Unmarshal([]byte(result), &balance); err != nil {
		return 0, fmt.Errorf("failed to parse reserve_credits response %q: %w", result, err)
	}

	if balance < 0 {
		return 0, pipeline.ErrInsufficientCredits
	}

	log.Printf("💰 [Ledger] Reserved %d credits from %s (balance: %d)", amount, accountID, balance)
	l.recordTransaction(accountID, -amount, balance, "Generation reserve")
	return balance, nil
}

// Refund - atomically credit amount back. Only fails when the account row
// itself is gone; the caller logs that as fatal and does not retry inline.
func (l *Ledger) Refund(ctx context.Context, accountID string, amount int) error {
	result := l.supabase.Rpc("refund_credits", "", map[string]interface{}{
		"p_user_id": accountID,
		"p_amount":  amount,
	})
	if result == "" {
		return fmt.Errorf("refund_credits rpc failed for %s", accountID)
	}

	var balance int
	if err := json.Unmarshal([]byte(result), &balance); err != nil {
		return fmt.Errorf("failed to parse refund_credits response %q: %w", result, err)
	}

	log.Printf("💰 [Ledger] Refunded %d credits to %s (balance: %d)", amount, accountID, balance)
	l.recordTransaction(accountID, amount, balance, "Generation refund")
	return nil
}

// recordTransaction - best-effort audit row; a miss here never fails the
// ledger operation itself.
func (l *Ledger) recordTransaction(accountID string, amount, balanceAfter int, description string) {
	transactionData := map[string]interface{}{
		"user_id":       accountID,
		"amount":        amount,
		"balance_after": balanceAfter,
		"description":   description,
	}

	_, _, err := l.supabase.From("credit_transactions").
		Insert(transactionData, false, "", "", "").
		Execute()
	if err != nil {
		log.Printf("⚠️  [Ledger] Failed to record transaction for %s: %v", accountID, err)
	}
}
