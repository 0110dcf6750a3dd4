// Package api defines the wire types of the MediaFlow HTTP API.
//
// # API Overview
//
// MediaFlow accepts generation jobs and runs them asynchronously:
//   - POST /v1/generations submits a job and returns 202 with its id
//   - GET /v1/generations/{id} returns the job status and, once finished, its result
//   - GET /v1/generations lists recent jobs, filterable by modality and status
//   - /health, /healthz, /ready and /version report service health
//
// # Authentication
//
// When API keys are configured, requests must carry the X-API-Key header:
//
//	X-API-Key: your-api-key
//
// # Idempotency
//
// Clients may send an Idempotency-Key header with POST /v1/generations.
// Repeating the same body under the same key returns the original job
// instead of starting a new one.
package api
