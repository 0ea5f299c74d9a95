// Package models defines the domain records of the SettleUp ledger engine.
//
// # Authoritative records
//
//   - SharedExpense: an amount paid by one party and split among participants
//   - Settlement: a recorded payment between two parties
//   - Group, Relationship: the membership context expenses and settlements live in
//
// # Derived records
//
//   - PairwiseBalance, GroupBalance: cached views that can always be rebuilt
//     from the active ledger; they are never the source of truth
//
// # Design Principles
//
//  1. Amounts are money.Amount (integer minor units), never floats
//  2. Split strategies are a closed set of variants (SplitStrategy), each
//     carrying only the fields it needs
//  3. Records reference each other by ID strings, not pointers
//  4. Removal is a soft delete (Active=false); history is never erased
package models
