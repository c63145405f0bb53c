package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/International-Combat-Archery-Alliance/checkin/attendance"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

var _ attendance.Repository = &DB{}

const (
	attendeeEntityName = "USER"
)

type attendeeDynamo struct {
	PK string
	SK string

	ID      uuid.UUID
	Version int
	Name    string
	Email   string
}

func attendeePK(id uuid.UUID) string {
	return fmt.Sprintf("%s#%s", attendeeEntityName, id)
}

func attendeeSK(id uuid.UUID) string {
	return attendeePK(id)
}

func attendeeToDynamo(a attendance.Attendee) attendeeDynamo {
	return attendeeDynamo{
		PK:      attendeePK(a.ID),
		SK:      attendeeSK(a.ID),
		ID:      a.ID,
		Version: a.Version,
		Name:    a.Name,
		Email:   a.Email,
	}
}

func attendeeFromDynamo(a attendeeDynamo) attendance.Attendee {
	return attendance.Attendee{
		ID:      a.ID,
		Version: a.Version,
		Name:    a.Name,
		Email:   a.Email,
	}
}

func (d *DB) CreateAttendee(ctx context.Context, attendee attendance.Attendee) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	dynamoItem := attendeeToDynamo(attendee)

	item, err := attributevalue.MarshalMap(dynamoItem)
	if err != nil {
		return attendance.NewFailedToTranslateToDBModelError("Failed to convert Attendee to attendeeDynamo", err)
	}

	expr := exprMustBuild(expression.NewBuilder().
		WithCondition(newEntityVersionConditional(dynamoItem.Version)))

	_, err = d.dynamoClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(d.tableName),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var condCheckFailedErr *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailedErr) {
			return attendance.NewAlreadyExistsError(fmt.Sprintf("Attendee with ID %q already exists", attendee.ID), err)
		} else if errors.Is(err, context.DeadlineExceeded) {
			return attendance.NewTimeoutError("CreateAttendee timed out", err)
		} else {
			return attendance.NewFailedToWriteError("Failed PutItem call", err)
		}
	}

	return nil
}

func (d *DB) GetAttendee(ctx context.Context, id uuid.UUID) (attendance.Attendee, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	resp, err := d.dynamoClient.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: attendeePK(id)},
			"SK": &types.AttributeValueMemberS{Value: attendeeSK(id)},
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return attendance.Attendee{}, attendance.NewTimeoutError("GetAttendee timed out", err)
		}
		return attendance.Attendee{}, attendance.NewFailedToFetchError(fmt.Sprintf("Failed to fetch attendee with ID %q", id), err)
	}

	if len(resp.Item) == 0 {
		return attendance.Attendee{}, attendance.NewAttendeeDoesNotExistError(fmt.Sprintf("Attendee with ID %q not found", id), nil)
	}

	var attendee attendeeDynamo
	err = attributevalue.UnmarshalMap(resp.Item, &attendee)
	if err != nil {
		return attendance.Attendee{}, attendance.NewFailedToTranslateToDBModelError("Failed to read attendee from DB", err)
	}

	return attendeeFromDynamo(attendee), nil
}
