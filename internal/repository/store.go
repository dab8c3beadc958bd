package repository

import (
	"encoding/json"
	"fmt"

	"github.com/edunik/edunik-api/pkg/docstore"
)

// Collection names under schools/{schoolId}/.
const (
	ColSubjects      = "subjects"
	ColClasses       = "classes"
	ColUsers         = "users"
	ColAssignments   = "assignments"
	ColSubmissions   = "submissions"
	ColGrades        = "grades"
	ColReviews       = "reviews"
	ColAttendance    = "attendance"
	ColQuizzes       = "quizzes"
	ColQuizSessions  = "quizSessions"
	ColQuizResults   = "quizResults"
	ColNotifications = "notifications"
	ColTimetables    = "timetables"
	ColParentLinks   = "parentLinkRequests"
	ColAuditLogs     = "auditLogs"
)

func decode[T any](doc *docstore.Document) (*T, error) {
	var out T
	if err := json.Unmarshal(doc.Data, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", doc.ID, err)
	}
	return &out, nil
}

func decodeAll[T any](docs []docstore.Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for i := range docs {
		item, err := decode[T](&docs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, nil
}

func encode(v interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// PutOp builds a batch put operation for an encodable document.
func PutOp(collection, id string, v interface{}) (docstore.WriteOp, error) {
	data, err := encode(v)
	if err != nil {
		return docstore.WriteOp{}, err
	}
	return docstore.WriteOp{Kind: docstore.WritePut, Collection: collection, ID: id, Data: data}, nil
}

// DeleteOp builds a batch delete operation.
func DeleteOp(collection, id string) docstore.WriteOp {
	return docstore.WriteOp{Kind: docstore.WriteDelete, Collection: collection, ID: id}
}

func paginate[T any](items []T, page, size int) ([]T, int) {
	total := len(items)
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	start := (page - 1) * size
	if start >= total {
		return []T{}, total
	}
	end := start + size
	if end > total {
		end = total
	}
	return items[start:end], total
}
