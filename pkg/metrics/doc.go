/*
Package metrics provides Prometheus metrics collection and exposition for
the command layer, plus a small health-check registry used by cmd/jongodb
serve's /health, /ready, and /live endpoints.

# Metrics

	jongodb_commands_total{command, result}
	jongodb_command_duration_seconds{command}
	jongodb_cursors_open
	jongodb_cursors_opened_total
	jongodb_getmore_total{outcome}
	jongodb_transactions_active
	jongodb_transactions_total{outcome}
	jongodb_write_conflicts_total
	jongodb_duplicate_key_errors_total

The dispatcher records commands_total, command_duration_seconds,
transactions_total, write_conflicts_total and duplicate_key_errors_total
inline at the call site (no background polling/collector goroutine is
needed, since dispatch already runs on every command). cursors_open,
cursors_opened_total, getmore_total and transactions_active are
registered and exposed, but no code path updates them.

# Health

RegisterComponent/UpdateComponent let long-lived components (the store,
the cursor registry, the dispatcher) report their own health; GetHealth
and GetReadiness aggregate that into the /health and /ready responses.
*/
package metrics
