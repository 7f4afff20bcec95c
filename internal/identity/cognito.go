// Package identity wraps the Cognito user pool: account flows and ID token verification.
package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"

	"github.com/jarrod-lowe/collab-service/internal/apperr"
	"github.com/jarrod-lowe/collab-service/internal/textnorm"
)

// CognitoAPI is the subset of the Cognito client used here.
type CognitoAPI interface {
	SignUp(ctx context.Context, params *cip.SignUpInput, optFns ...func(*cip.Options)) (*cip.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, params *cip.ConfirmSignUpInput, optFns ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error)
	ResendConfirmationCode(ctx context.Context, params *cip.ResendConfirmationCodeInput, optFns ...func(*cip.Options)) (*cip.ResendConfirmationCodeOutput, error)
	InitiateAuth(ctx context.Context, params *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
}

// ErrChallenge is returned when the pool demands a challenge this API does not support.
var ErrChallenge = apperr.Validation("Additional authentication challenge required")

// SignUpResult is returned by SignUp.
type SignUpResult struct {
	UserSub       string `json:"userSub"`
	UserConfirmed bool   `json:"userConfirmed"`
}

// Tokens is returned by Login and Refresh. Refresh leaves RefreshToken and Email empty.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int32  `json:"expiresIn"`
	TokenType    string `json:"tokenType"`
	Email        string `json:"email,omitempty"`
}

// Cognito runs the account flows against one app client. Email is the pool username.
type Cognito struct {
	api          CognitoAPI
	clientID     string
	clientSecret string
}

// NewCognito creates a Cognito client. An empty clientSecret omits SECRET_HASH.
func NewCognito(api CognitoAPI, clientID, clientSecret string) *Cognito {
	return &Cognito{api: api, clientID: clientID, clientSecret: clientSecret}
}

// SignUp registers email with password.
func (c *Cognito) SignUp(ctx context.Context, email, password string) (*SignUpResult, error) {
	email = textnorm.NormalizeEmail(email)
	output, err := c.api.SignUp(ctx, &cip.SignUpInput{
		ClientId:   aws.String(c.clientID),
		Username:   aws.String(email),
		Password:   aws.String(password),
		SecretHash: c.secretHash(email),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(email)},
		},
	})
	if err != nil {
		return nil, mapError("sign up", err)
	}
	return &SignUpResult{
		UserSub:       aws.ToString(output.UserSub),
		UserConfirmed: output.UserConfirmed,
	}, nil
}

// ConfirmSignUp submits the emailed confirmation code.
func (c *Cognito) ConfirmSignUp(ctx context.Context, email, code string) error {
	email = textnorm.NormalizeEmail(email)
	_, err := c.api.ConfirmSignUp(ctx, &cip.ConfirmSignUpInput{
		ClientId:         aws.String(c.clientID),
		Username:         aws.String(email),
		ConfirmationCode: aws.String(code),
		SecretHash:       c.secretHash(email),
	})
	if err != nil {
		return mapError("confirm sign up", err)
	}
	return nil
}

// ResendCode sends a new confirmation code.
func (c *Cognito) ResendCode(ctx context.Context, email string) error {
	email = textnorm.NormalizeEmail(email)
	_, err := c.api.ResendConfirmationCode(ctx, &cip.ResendConfirmationCodeInput{
		ClientId:   aws.String(c.clientID),
		Username:   aws.String(email),
		SecretHash: c.secretHash(email),
	})
	if err != nil {
		return mapError("resend code", err)
	}
	return nil
}

// Login exchanges email and password for tokens.
func (c *Cognito) Login(ctx context.Context, email, password string) (*Tokens, error) {
	email = textnorm.NormalizeEmail(email)
	params := map[string]string{
		"USERNAME": email,
		"PASSWORD": password,
	}
	if hash := c.secretHash(email); hash != nil {
		params["SECRET_HASH"] = *hash
	}
	tokens, err := c.initiate(ctx, types.AuthFlowTypeUserPasswordAuth, params)
	if err != nil {
		return nil, err
	}
	tokens.Email = email
	return tokens, nil
}

// Refresh exchanges a refresh token for new access and ID tokens. username is only needed
// when the app client has a secret; Cognito then expects the user's sub.
func (c *Cognito) Refresh(ctx context.Context, refreshToken, username string) (*Tokens, error) {
	params := map[string]string{"REFRESH_TOKEN": refreshToken}
	if hash := c.secretHash(username); hash != nil && username != "" {
		params["SECRET_HASH"] = *hash
	}
	tokens, err := c.initiate(ctx, types.AuthFlowTypeRefreshTokenAuth, params)
	if err != nil {
		return nil, err
	}
	tokens.RefreshToken = ""
	return tokens, nil
}

func (c *Cognito) initiate(ctx context.Context, flow types.AuthFlowType, params map[string]string) (*Tokens, error) {
	output, err := c.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       flow,
		ClientId:       aws.String(c.clientID),
		AuthParameters: params,
	})
	if err != nil {
		return nil, mapError("initiate auth", err)
	}
	result := output.AuthenticationResult
	if result == nil {
		return nil, ErrChallenge
	}
	return &Tokens{
		AccessToken:  aws.ToString(result.AccessToken),
		IDToken:      aws.ToString(result.IdToken),
		RefreshToken: aws.ToString(result.RefreshToken),
		ExpiresIn:    result.ExpiresIn,
		TokenType:    aws.ToString(result.TokenType),
	}, nil
}

// secretHash is base64(HMAC-SHA256(clientSecret, username + clientId)).
func (c *Cognito) secretHash(username string) *string {
	if c.clientSecret == "" {
		return nil
	}
	mac := hmac.New(sha256.New, []byte(c.clientSecret))
	mac.Write([]byte(username + c.clientID))
	return aws.String(base64.StdEncoding.EncodeToString(mac.Sum(nil)))
}

// mapError turns Cognito service errors into client errors carrying Cognito's message.
// Transport and unexpected failures stay internal.
func mapError(op string, err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch apiErr.ErrorCode() {
	case "InternalErrorException", "ResourceNotFoundException":
		return fmt.Errorf("%s: %w", op, err)
	}
	message := apiErr.ErrorMessage()
	if message == "" {
		message = apiErr.ErrorCode()
	}
	return apperr.Wrap(apperr.Validation(message), err)
}
