package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, outcome := range []string{"thumbnail", "no_thumbnail", "compressed", "error"} {
		ParserParsesTotal.WithLabelValues(outcome)
	}

	for _, result := range []string{"thumbnail", "negative"} {
		ThumbnailLoadsTotal.WithLabelValues(result)
	}

	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	volumes := []string{"library", "cache", "database", "unknown"}
	fsOps := []string{"stat", "open", "read", "write"}
	for _, vol := range volumes {
		for _, op := range fsOps {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
		}
	}

	for _, op := range []string{"initialize_schema", "upsert_file", "batch_upsert",
		"get_file_by_path", "list_files", "delete_missing_files", "get_stats",
		"add_tag", "remove_tag", "get_file_tags", "get_all_tags",
		"get_files_by_tag", "delete_tag", "rename_tag"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, outcome := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(outcome)
	}
}
