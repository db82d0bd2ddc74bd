// Package api hosts the HTML front end for the task list. Routes:
//   - GET /ping liveness probe.
//   - GET / task list, newest first.
//   - GET /create and POST /create to add a task.
//   - POST /delete/{id} to remove a task.
//   - GET /metrics for Prometheus scraping.
package api
