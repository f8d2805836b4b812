// Package auth drives the OAuth2 PKCE flow against the Microsoft identity
// platform and manages the per-account token cache used for on-behalf-of
// acquisition.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jun/workspacehub/internal/crypto"
	"github.com/jun/workspacehub/internal/model"
	"golang.org/x/oauth2"
)

// Scopes is the fixed scope set requested at login and on every silent
// refresh for the downstream Graph API.
var Scopes = []string{"User.Read", "Files.Read.All", "offline_access"}

// Account identity extracted from the id_token after a code exchange.
type Account struct {
	HomeAccountID string
	Name          string
	Username      string
}

// Service handles the authorization-code exchange and token management.
// Accounts are cached in DynamoDB keyed by home account id, with an
// in-memory fallback when no client is configured (tests, dev mode).
type Service struct {
	oauthConfig  *oauth2.Config
	dynamoClient *dynamodb.Client
	tableName    string
	encryptor    crypto.Encryptor

	// In-memory fallback
	accounts map[string]model.CachedAccount
	mu       sync.RWMutex
}

// NewService creates a new Service. The oauthConfig should be constructed by
// the caller from the resolved configuration.
func NewService(oauthConfig *oauth2.Config, dynamoClient *dynamodb.Client, tableName string, encryptor crypto.Encryptor) *Service {
	return &Service{
		oauthConfig:  oauthConfig,
		dynamoClient: dynamoClient,
		tableName:    tableName,
		encryptor:    encryptor,
		accounts:     make(map[string]model.CachedAccount),
	}
}

// GenerateVerifier returns a fresh PKCE code verifier. The S256 challenge is
// derived from it when building the authorization URL; the verifier itself
// must never appear in a redirect or a log line.
func GenerateVerifier() string {
	return oauth2.GenerateVerifier()
}

// AuthCodeURL builds the authorization URL carrying the S256 challenge for
// verifier. The callback is bound by PKCE, not by a state nonce.
func (s *Service) AuthCodeURL(verifier, redirectURI string) string {
	cfg := *s.oauthConfig
	cfg.RedirectURL = redirectURI
	return cfg.AuthCodeURL("", oauth2.S256ChallengeOption(verifier))
}

// ExchangeCode redeems an authorization code bound to verifier and derives
// the account identity from the returned id_token.
func (s *Service) ExchangeCode(ctx context.Context, code, verifier, redirectURI string) (*oauth2.Token, *Account, error) {
	cfg := *s.oauthConfig
	cfg.RedirectURL = redirectURI

	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, nil, &Error{Kind: KindProviderError, Detail: providerDetail(err)}
	}

	account, err := accountFromToken(token)
	if err != nil {
		return nil, nil, fmt.Errorf("token acquisition succeeded but no account could be derived: %w", err)
	}
	return token, account, nil
}

// accountFromToken parses the id_token claims. The signature is not
// re-verified here: the token arrived over TLS directly from the token
// endpoint of the configured authority.
func accountFromToken(token *oauth2.Token) (*Account, error) {
	raw, _ := token.Extra("id_token").(string)
	if raw == "" {
		return nil, errors.New("token response carried no id_token")
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("failed to parse id_token: %w", err)
	}

	oid, _ := claims["oid"].(string)
	if oid == "" {
		oid, _ = claims["sub"].(string)
	}
	tid, _ := claims["tid"].(string)
	if oid == "" || tid == "" {
		return nil, errors.New("id_token missing oid/tid claims")
	}

	name, _ := claims["name"].(string)
	username, _ := claims["preferred_username"].(string)

	return &Account{
		// MSAL convention: homeAccountId = <object id>.<tenant id>
		HomeAccountID: oid + "." + tid,
		Name:          name,
		Username:      username,
	}, nil
}

// SaveAccount encrypts the refresh token and stores the account, replacing
// any previous entry for the same home account id.
func (s *Service) SaveAccount(ctx context.Context, account *Account, token *oauth2.Token) error {
	if token.RefreshToken == "" {
		return fmt.Errorf("no refresh token in response")
	}

	encrypted, err := s.encryptor.Encrypt(ctx, token.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	cached := model.CachedAccount{
		HomeAccountID:         account.HomeAccountID,
		EncryptedRefreshToken: encrypted,
		Username:              account.Username,
		Name:                  account.Name,
		UpdatedAt:             time.Now(),
	}

	if s.dynamoClient == nil {
		s.mu.Lock()
		s.accounts[account.HomeAccountID] = cached
		s.mu.Unlock()
		return nil
	}

	item, err := attributevalue.MarshalMap(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal cached account: %w", err)
	}
	_, err = s.dynamoClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save account to DynamoDB: %w", err)
	}
	return nil
}

func (s *Service) getAccount(ctx context.Context, homeAccountID string) (*model.CachedAccount, error) {
	if s.dynamoClient == nil {
		s.mu.RLock()
		cached, ok := s.accounts[homeAccountID]
		s.mu.RUnlock()
		if !ok {
			return nil, nil
		}
		return &cached, nil
	}

	out, err := s.dynamoClient.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"home_account_id": &types.AttributeValueMemberS{Value: homeAccountID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get account from DynamoDB: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var cached model.CachedAccount
	if err := attributevalue.UnmarshalMap(out.Item, &cached); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached account: %w", err)
	}
	return &cached, nil
}

// AcquireTokenOnBehalfOf returns an access token for the downstream API
// using the cached account. It never prompts: if the provider demands user
// interaction the error has KindInteractionRequired so callers can route to
// re-login instead of a generic failure. A missing account or any other
// provider failure yields KindNoToken.
func (s *Service) AcquireTokenOnBehalfOf(ctx context.Context, homeAccountID string) (string, error) {
	cached, err := s.getAccount(ctx, homeAccountID)
	if err != nil {
		log.Printf("AcquireTokenOnBehalfOf: account lookup failed for %s: %v", homeAccountID, err)
		return "", &Error{Kind: KindNoToken, Detail: "account lookup failed"}
	}
	if cached == nil {
		log.Printf("AcquireTokenOnBehalfOf: no cached account for %s", homeAccountID)
		return "", &Error{Kind: KindNoToken, Detail: "no cached account"}
	}

	refreshToken, err := s.encryptor.Decrypt(ctx, cached.EncryptedRefreshToken)
	if err != nil {
		log.Printf("AcquireTokenOnBehalfOf: refresh token decrypt failed for %s: %v", homeAccountID, err)
		return "", &Error{Kind: KindNoToken, Detail: "refresh token unusable"}
	}

	// Expiry in the past forces an immediate silent refresh.
	seed := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-1 * time.Hour),
	}
	token, err := s.oauthConfig.TokenSource(ctx, seed).Token()
	if err != nil {
		if interactionRequired(err) {
			log.Printf("AcquireTokenOnBehalfOf: interaction required for %s", homeAccountID)
			return "", &Error{Kind: KindInteractionRequired, Detail: providerDetail(err)}
		}
		log.Printf("AcquireTokenOnBehalfOf: silent refresh failed for %s: %s", homeAccountID, providerDetail(err))
		return "", &Error{Kind: KindNoToken, Detail: "silent refresh failed"}
	}
	return token.AccessToken, nil
}

// RemoveAccount deletes the cached account. Used by logout; callers treat
// failures as best-effort.
func (s *Service) RemoveAccount(ctx context.Context, homeAccountID string) error {
	if s.dynamoClient == nil {
		s.mu.Lock()
		delete(s.accounts, homeAccountID)
		s.mu.Unlock()
		return nil
	}

	_, err := s.dynamoClient.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"home_account_id": &types.AttributeValueMemberS{Value: homeAccountID},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to remove account from DynamoDB: %w", err)
	}
	return nil
}

// GetTestAccounts exposes the in-memory cache for tests.
func (s *Service) GetTestAccounts() map[string]model.CachedAccount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.CachedAccount, len(s.accounts))
	for k, v := range s.accounts {
		out[k] = v
	}
	return out
}

// interactionRequired reports whether a token-endpoint error means the user
// has to re-authenticate interactively. The code set matches what MSAL
// classifies as InteractionRequiredAuthError.
func interactionRequired(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return false
	}
	switch re.ErrorCode {
	case "interaction_required", "consent_required", "login_required", "invalid_grant":
		return true
	}
	return false
}

// providerDetail renders a provider error for logs: error code and
// description only, never tokens or verifiers.
func providerDetail(err error) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return fmt.Sprintf("%s: %s", re.ErrorCode, re.ErrorDescription)
	}
	return err.Error()
}
