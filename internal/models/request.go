package models

import "fmt"

// WriteMode controls the load job's write disposition.
type WriteMode string

const (
	ModeCreate WriteMode = "create"
	ModeAppend WriteMode = "append"
)

// TriggerEvent is the storage notification that starts one invocation.
type TriggerEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// PubSubEnvelope is the Pub/Sub push wrapper around a trigger event.
// message.data holds the base64-encoded TriggerEvent JSON.
type PubSubEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// IngestionRequest is the decoded trigger filename. Built once by the
// request router and immutable for the lifetime of the invocation.
type IngestionRequest struct {
	DatasetID  string
	TableID    string
	Mode       WriteMode
	SourcePath string // original file name after the "__" separator
	Bucket     string
	Object     string // full triggering object name
}

// SourceURI returns the gs:// URI of the triggering object.
func (r IngestionRequest) SourceURI() string {
	return fmt.Sprintf("gs://%s/%s", r.Bucket, r.Object)
}
