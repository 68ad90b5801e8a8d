// Package task is the distributed dispatch layer. A Client publishes named
// tasks with JSON arguments to a Broker queue chosen by a Router; Workers
// consume those queues, run the Handler registered for the task name and
// record the outcome in a ResultBackend, where an AsyncResult can wait for it.
//
// Chains run tasks one after another: each link receives the previous link's
// result as its first positional argument.
package task
