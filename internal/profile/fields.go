package profile

import (
	"strconv"
	"time"
)

// Field is one Firestore REST typed value, e.g. {"stringValue": "x"}.
// The encoding rules live here so the wire format is unit-testable without
// the HTTP call.
type Field map[string]any

func StringField(v string) Field { return Field{"stringValue": v} }

// IntegerField encodes as a decimal string per the REST contract.
func IntegerField(v int64) Field { return Field{"integerValue": strconv.FormatInt(v, 10)} }

func DoubleField(v float64) Field { return Field{"doubleValue": v} }

func BoolField(v bool) Field { return Field{"booleanValue": v} }

// TimestampField encodes as RFC 3339 UTC.
func TimestampField(t time.Time) Field {
	return Field{"timestampValue": t.UTC().Format(time.RFC3339Nano)}
}

func ArrayField(values ...Field) Field {
	if values == nil {
		values = []Field{}
	}
	return Field{"arrayValue": map[string]any{"values": values}}
}

// documentFields encodes the profile document for the REST create endpoint.
// Required fields are always present; optional fields are included only when
// set on the input.
func documentFields(in Input) map[string]Field {
	courses := make([]Field, 0, len(in.CoursesTitle))
	for _, c := range in.CoursesTitle {
		courses = append(courses, StringField(c))
	}
	fields := map[string]Field{
		"regdNo":          StringField(in.RegdNo),
		"email":           StringField(in.Email),
		"emailNormalized": StringField(in.EmailNormalized),
		"name":            StringField(in.Name),
		"classId":         StringField(in.ClassID),
		"uid":             StringField(in.UID),
		"role":            StringField(in.Role),
		"phone1":          StringField(in.RawPhone),
		"phone":           StringField(in.Phone),
		"coursesTitle":    ArrayField(courses...),
		"reminderCount":   IntegerField(0),
		"createdAt":       TimestampField(in.CreatedAt),
		"createdBy":       StringField(in.CreatedBy),
		"authUserCreated": BoolField(in.AuthUserCreated),
	}
	if in.TotalFee != nil {
		fields["totalFee"] = DoubleField(*in.TotalFee)
	}
	if in.Discount != nil {
		fields["discount"] = DoubleField(*in.Discount)
	}
	return fields
}
