package validators

import (
	"roombooking/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
)

var RoomValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"name", "auditorium", "floor", "capacity", "status", "created_at"},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{"bsonType": "objectId"},
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 100,
			},
			"auditorium": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 50,
			},
			"floor": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
				"maximum":  200,
			},
			"location": bson.M{
				"bsonType":  "string",
				"maxLength": 200,
			},
			"capacity": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
				"maximum":  2000,
			},
			"equipments": bson.M{
				"bsonType": []string{"array", "null"},
				"maxItems": 50,
				"items":    bson.M{"bsonType": "string", "minLength": 1, "maxLength": 50},
			},
			"status": bson.M{
				"enum": statusEnum([]model.RoomStatus{model.RoomAvailable, model.RoomMaintenance}),
			},
			"created_at": bson.M{"bsonType": "date"},
			"updated_at": bson.M{"bsonType": "date"},
		},
	},
}
