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

const (
	registrationEntityName = "REGISTRATION"
)

// Registrations live in their attendee's partition so a scan can list them
// in one query; GSI1 finds one by ID alone when it is marked.
type registrationDynamo struct {
	PK     string
	SK     string
	GSI1PK string
	GSI1SK string

	ID             uuid.UUID
	Version        int
	AttendeeID     uuid.UUID
	EventID        uuid.UUID
	EventName      string
	EventStartTime time.Time
	RegisteredAt   time.Time
	AttendedAt     *time.Time `dynamodbav:",omitempty"`
}

func registrationPK(attendeeID uuid.UUID) string {
	return attendeePK(attendeeID)
}

func registrationSK(id uuid.UUID) string {
	return fmt.Sprintf("%s#%s", registrationEntityName, id)
}

func registrationGSI1PK(id uuid.UUID) string {
	return registrationSK(id)
}

func registrationToDynamo(reg attendance.Registration) registrationDynamo {
	return registrationDynamo{
		PK:             registrationPK(reg.AttendeeID),
		SK:             registrationSK(reg.ID),
		GSI1PK:         registrationGSI1PK(reg.ID),
		GSI1SK:         registrationGSI1PK(reg.ID),
		ID:             reg.ID,
		Version:        reg.Version,
		AttendeeID:     reg.AttendeeID,
		EventID:        reg.EventID,
		EventName:      reg.EventName,
		EventStartTime: reg.EventStartTime,
		RegisteredAt:   reg.RegisteredAt,
		AttendedAt:     reg.AttendedAt,
	}
}

func registrationFromDynamo(reg registrationDynamo) attendance.Registration {
	return attendance.Registration{
		ID:             reg.ID,
		Version:        reg.Version,
		AttendeeID:     reg.AttendeeID,
		EventID:        reg.EventID,
		EventName:      reg.EventName,
		EventStartTime: reg.EventStartTime,
		RegisteredAt:   reg.RegisteredAt,
		AttendedAt:     reg.AttendedAt,
	}
}

func (d *DB) CreateRegistration(ctx context.Context, reg attendance.Registration) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	dynamoReg := registrationToDynamo(reg)

	regItem, err := attributevalue.MarshalMap(dynamoReg)
	if err != nil {
		return attendance.NewFailedToTranslateToDBModelError("Failed to translate registration to dynamo model", err)
	}
	regExpr := exprMustBuild(expression.NewBuilder().
		WithCondition(newEntityVersionConditional(dynamoReg.Version)))

	attendeeExpr := exprMustBuild(expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeExists()))

	_, err = d.dynamoClient.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:                 aws.String(d.tableName),
					Item:                      regItem,
					ConditionExpression:       regExpr.Condition(),
					ExpressionAttributeNames:  regExpr.Names(),
					ExpressionAttributeValues: regExpr.Values(),
				},
			},
			{
				ConditionCheck: &types.ConditionCheck{
					TableName: aws.String(d.tableName),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: attendeePK(reg.AttendeeID)},
						"SK": &types.AttributeValueMemberS{Value: attendeeSK(reg.AttendeeID)},
					},
					ConditionExpression:       attendeeExpr.Condition(),
					ExpressionAttributeNames:  attendeeExpr.Names(),
					ExpressionAttributeValues: attendeeExpr.Values(),
				},
			},
		},
	})
	if err != nil {
		var transactionFailedErr *types.TransactionCanceledException
		if errors.As(err, &transactionFailedErr) {
			reasons := transactionFailedErr.CancellationReasons
			if len(reasons) > 1 && isConditionalCheckFailed(reasons[1]) {
				return attendance.NewAttendeeDoesNotExistError(fmt.Sprintf("Attendee with ID %q does not exist", reg.AttendeeID), err)
			}
			if len(reasons) > 0 && isConditionalCheckFailed(reasons[0]) {
				return attendance.NewAlreadyExistsError(fmt.Sprintf("Registration with ID %q already exists", reg.ID), err)
			}
			return attendance.NewFailedToWriteError("Registration transaction was cancelled", err)
		} else if errors.Is(err, context.DeadlineExceeded) {
			return attendance.NewTimeoutError("CreateRegistration timed out", err)
		} else {
			return attendance.NewFailedToWriteError("Failed TransactWriteItems call", err)
		}
	}

	return nil
}

func isConditionalCheckFailed(reason types.CancellationReason) bool {
	return reason.Code != nil && *reason.Code == "ConditionalCheckFailed"
}

func (d *DB) GetRegistration(ctx context.Context, id uuid.UUID) (attendance.Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	keyCond := expression.Key("GSI1PK").Equal(expression.Value(registrationGSI1PK(id)))
	expr := exprMustBuild(expression.NewBuilder().WithKeyCondition(keyCond))

	resp, err := d.dynamoClient.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(d.tableName),
		IndexName:                 aws.String(gsi1),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return attendance.Registration{}, attendance.NewTimeoutError("GetRegistration timed out", err)
		}
		return attendance.Registration{}, attendance.NewFailedToFetchError(fmt.Sprintf("Failed to fetch registration with ID %q", id), err)
	}

	if len(resp.Items) == 0 {
		return attendance.Registration{}, attendance.NewRegistrationDoesNotExistError(fmt.Sprintf("Registration with ID %q not found", id), nil)
	}

	var reg registrationDynamo
	err = attributevalue.UnmarshalMap(resp.Items[0], &reg)
	if err != nil {
		return attendance.Registration{}, attendance.NewFailedToTranslateToDBModelError("Failed to read registration from DB", err)
	}

	return registrationFromDynamo(reg), nil
}

func (d *DB) GetRegistrationsForAttendee(ctx context.Context, attendeeID uuid.UUID) ([]attendance.Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	keyCond := expression.Key("PK").Equal(expression.Value(registrationPK(attendeeID))).
		And(expression.Key("SK").BeginsWith(registrationEntityName + "#"))
	expr := exprMustBuild(expression.NewBuilder().WithKeyCondition(keyCond))

	paginator := dynamodb.NewQueryPaginator(d.dynamoClient, &dynamodb.QueryInput{
		TableName:                 aws.String(d.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	regs := []attendance.Registration{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, attendance.NewTimeoutError("GetRegistrationsForAttendee timed out", err)
			}
			return nil, attendance.NewFailedToFetchError(fmt.Sprintf("Failed to fetch registrations for attendee %q", attendeeID), err)
		}

		var dynamoRegs []registrationDynamo
		err = attributevalue.UnmarshalListOfMaps(page.Items, &dynamoRegs)
		if err != nil {
			return nil, attendance.NewFailedToTranslateToDBModelError("Failed to read registrations from DB", err)
		}

		for _, r := range dynamoRegs {
			regs = append(regs, registrationFromDynamo(r))
		}
	}

	return regs, nil
}

// UpdateRegistration overwrites a registration whose stored version is one
// behind reg's.
func (d *DB) UpdateRegistration(ctx context.Context, reg attendance.Registration) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	dynamoItem := registrationToDynamo(reg)

	item, err := attributevalue.MarshalMap(dynamoItem)
	if err != nil {
		return attendance.NewFailedToTranslateToDBModelError("Failed to convert Registration to registrationDynamo", err)
	}

	expr := exprMustBuild(expression.NewBuilder().
		WithCondition(existingEntityVersionConditional(dynamoItem.Version)))

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
			return attendance.NewVersionConflictError(fmt.Sprintf("Registration with ID %q is missing or was changed concurrently", reg.ID), err)
		} else if errors.Is(err, context.DeadlineExceeded) {
			return attendance.NewTimeoutError("UpdateRegistration timed out", err)
		} else {
			return attendance.NewFailedToWriteError("Failed PutItem call", err)
		}
	}

	return nil
}
