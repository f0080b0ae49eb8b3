package validators

import (
	"roombooking/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
)

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"resource_id",
			"requester_id",
			"start_time",
			"end_time",
			"status",
			"version",
			"created_at",
			"updated_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"resource_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"requester_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 128,
			},

			"start_time": bson.M{
				"bsonType": "date",
			},

			"end_time": bson.M{
				"bsonType": "date",
			},

			"status": bson.M{
				"enum": statusEnum(model.BookingStatuses),
			},

			"version": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},

			"created_at": bson.M{"bsonType": "date"},
			"updated_at": bson.M{"bsonType": "date"},
			"canceled_at": bson.M{
				"bsonType": []string{"date", "null"},
			},
			"decided_by": bson.M{"bsonType": "string"},
			"decided_at": bson.M{
				"bsonType": []string{"date", "null"},
			},
		},
	},
	// end_time > start_time cannot be expressed in $jsonSchema alone.
	"$expr": bson.M{"$gt": bson.A{"$end_time", "$start_time"}},
}

func statusEnum[S ~string](statuses []S) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
