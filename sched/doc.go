// Package sched runs tasks at scheduled times on a single worker
// goroutine. Tasks execute strictly earliest-deadline-first; the loop
// sleeps until the earliest pending deadline and is woken early only
// by admissions, cancellations, or shutdown, never by polling.
package sched
