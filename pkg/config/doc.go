// Package config provides application configuration management from
// environment variables with sensible defaults.
//
// Server settings:
//
//	DOCVAULT_HOST="0.0.0.0"
//	DOCVAULT_PORT="8080"
//	DOCVAULT_READ_TIMEOUT="15s"
//	DOCVAULT_WRITE_TIMEOUT="60s"
//	DOCVAULT_MAX_UPLOAD_BYTES="52428800"
//
// Database settings:
//
//	DOCVAULT_POSTGRES_URL="postgres://localhost/docvault"
//	DOCVAULT_POSTGRES_MAX_CONNS="25"
//
// Blob storage settings:
//
//	DOCVAULT_BLOB_BACKEND="filesystem"  # filesystem or s3
//	DOCVAULT_BLOB_ROOT="/var/lib/docvault/blobs"
//	DOCVAULT_S3_ENDPOINT="http://minio:9000"
//	DOCVAULT_S3_BUCKET="docvault-files"
//	DOCVAULT_S3_REGION="us-east-1"
//
// Auth and observability settings:
//
//	DOCVAULT_TOKEN_TTL="720h"
//	DOCVAULT_LOG_LEVEL="info"  # debug, info, warn, error
//	DOCVAULT_METRICS_ENABLED="true"
package config
