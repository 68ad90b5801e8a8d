// Package events carries task lifecycle notifications from workers to any
// number of observers (structured logging, prometheus metrics, the monitor).
//
// Workers emit a TaskEvent for every state transition of a task. Handlers are
// registered on an EventEmitter and never see the worker internals.
package events
