package validators

import (
	"roombooking/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
)

var BookingEventValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "type", "booking_id", "resource_id", "actor_id", "to_status", "occurred_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id": bson.M{"bsonType": "string", "minLength": 1},
			"type": bson.M{
				"enum": statusEnum([]model.BookingEventType{
					model.EventBookingCreated,
					model.EventBookingApproved,
					model.EventBookingRejected,
					model.EventBookingCanceled,
					model.EventBookingEdited,
				}),
			},
			"booking_id":  bson.M{"bsonType": "string"},
			"resource_id": bson.M{"bsonType": "string"},
			"actor_id":    bson.M{"bsonType": "string"},
			"to_status":   bson.M{"enum": statusEnum(model.BookingStatuses)},
			"occurred_at": bson.M{"bsonType": "date"},
		},
	},
}
