package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"julianmorley.ca/con-plar/marketplace/pkg/models"
)

// SalesReport groups orders by order_status with count and revenue per group.
func (s *Store) SalesReport(ctx context.Context) (*models.SalesReport, error) {
	collection := s.collection(ordersCollection)

	pipeline := bson.A{
		bson.D{
			{Key: "$group", Value: bson.D{
				{Key: "_id", Value: "$order_status"},
				{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
				{Key: "revenue", Value: bson.D{{Key: "$sum", Value: "$total_amount"}}},
				{Key: "avg_order_value", Value: bson.D{{Key: "$avg", Value: "$total_amount"}}},
			}},
		},
		bson.D{
			{Key: "$project", Value: bson.D{
				{Key: "_id", Value: 1},
				{Key: "count", Value: 1},
				{Key: "revenue", Value: bson.D{{Key: "$round", Value: bson.A{"$revenue", 2}}}},
				{Key: "avg_order_value", Value: bson.D{{Key: "$round", Value: bson.A{"$avg_order_value", 2}}}},
			}},
		},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}}}},
	}

	cursor, err := collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var statuses []models.StatusSummary
	if err := cursor.All(ctx, &statuses); err != nil {
		return nil, err
	}

	return models.NewSalesReport(statuses), nil
}
