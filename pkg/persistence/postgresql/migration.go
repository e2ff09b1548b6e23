package postgresql

// migrations returns the ordered schema migrations for the executions store.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS executions (
				execution_id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				workflow_type TEXT NOT NULL,
				user_id TEXT NOT NULL,
				project_id TEXT,
				status TEXT NOT NULL,
				total_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
				state JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_executions_user_id ON executions (user_id);
			CREATE INDEX IF NOT EXISTS idx_executions_status ON executions (status);
			CREATE INDEX IF NOT EXISTS idx_executions_created_at ON executions (created_at DESC);
		`,
	}
}
