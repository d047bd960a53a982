// Package tracesink implements the optional trace archival boundary
// SPEC_FULL.md §6 adds: run_report_with_trace callers may attach a
// TraceSink invoked after a successful plan, never on the planning hot
// path. MongoTraceSink is grounded on client.go's WrapMongo constructor
// and its bsonToMap document-shaping helper.
package tracesink

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/htnql-engine/htnql/htn"
)

// Sink archives a completed trace. A Sink failure is logged by the
// caller and never fails run_report_with_trace itself.
type Sink interface {
	Write(ctx context.Context, reportName string, trace []htn.TraceStep) error
}

// MongoTraceSink archives traces as BSON documents in a single
// collection, one document per run_report_with_trace call.
type MongoTraceSink struct {
	collection *mongo.Collection
}

// NewMongoTraceSink wraps an existing collection handle.
func NewMongoTraceSink(collection *mongo.Collection) *MongoTraceSink {
	return &MongoTraceSink{collection: collection}
}

type traceDoc struct {
	ReportName string          `bson:"report_name"`
	RecordedAt time.Time       `bson:"recorded_at"`
	Steps      []traceStepDoc  `bson:"steps"`
}

type traceStepDoc struct {
	Task        string   `bson:"task"`
	Method      string   `bson:"method,omitempty"`
	Depth       int      `bson:"depth"`
	ChangedKeys []string `bson:"changed_keys,omitempty"`
}

// Write implements Sink.
func (m *MongoTraceSink) Write(ctx context.Context, reportName string, trace []htn.TraceStep) error {
	steps := make([]traceStepDoc, len(trace))
	for i, s := range trace {
		steps[i] = traceStepDoc{Task: s.Task, Method: s.Method, Depth: s.Depth, ChangedKeys: s.ChangedKeys}
	}
	doc := traceDoc{ReportName: reportName, RecordedAt: time.Now(), Steps: steps}
	encoded, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	var raw bson.Raw = encoded
	_, err = m.collection.InsertOne(ctx, raw)
	return err
}
