// Package app wires the service graph and routes API Gateway requests.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/jun/workspacehub/internal/auth"
	"github.com/jun/workspacehub/internal/completion"
	"github.com/jun/workspacehub/internal/config"
	"github.com/jun/workspacehub/internal/crypto"
	"github.com/jun/workspacehub/internal/handler"
	"github.com/jun/workspacehub/internal/knowledge"
	"github.com/jun/workspacehub/internal/secret"
	"github.com/jun/workspacehub/internal/session"
	"github.com/jun/workspacehub/internal/state"
)

// App holds the dependencies for the Lambda function.
type App struct {
	cfg               *config.Config
	authHandler       *handler.AuthHandler
	profileHandler    *handler.ProfileHandler
	configHandler     *handler.ConfigHandler
	completionHandler *handler.CompletionHandler
	graphHandler      *handler.GraphHandler
	knowledgeHandler  *handler.KnowledgeHandler
	stateHandler      *handler.StateHandler
	settingsHandler   *handler.SettingsHandler
}

// NewApp initializes the application dependencies.
func NewApp(ctx context.Context) *App {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		panic(fmt.Sprintf("unable to load SDK config, %v", err))
	}

	devMode := os.Getenv("DEV_MODE") == "true"

	// ---------- Secret Resolver ----------
	var resolver secret.Resolver
	if devMode {
		resolver = secret.NewEnvResolver()
		fmt.Println("Using EnvResolver (DEV_MODE=true)")
	} else {
		resolver = secret.NewSSMResolver(ssm.NewFromConfig(awsCfg))
		fmt.Println("Using SSMResolver (SSM Parameter Store)")
	}

	cfg, err := config.Load(ctx, resolver)
	if err != nil {
		panic(fmt.Sprintf("configuration invalid: %v", err))
	}

	// DynamoDB Client (in-memory fallbacks in dev mode)
	var dynamoClient *dynamodb.Client
	if devMode {
		fmt.Println("Using in-memory stores (DEV_MODE=true)")
	} else {
		dynamoClient = dynamodb.NewFromConfig(awsCfg)
	}

	// KMS Client
	var encryptor crypto.Encryptor
	if devMode {
		encryptor = crypto.NewMockEncryptor()
		fmt.Println("Using MockEncryptor (DEV_MODE=true)")
	} else {
		kmsKeyID := os.Getenv("KMS_KEY_ID")
		if kmsKeyID == "" {
			kmsKeyID = "alias/workspacehub-token-key"
		}
		encryptor = crypto.NewKMSService(kms.NewFromConfig(awsCfg), kmsKeyID)
	}

	// Session Codec + Manager
	codec, err := crypto.NewSessionCodec(cfg.SessionSecret)
	if err != nil {
		panic(fmt.Sprintf("session codec init failed: %v", err))
	}
	sessions := session.NewManager(codec, cfg.Production)

	// OAuth2 Config (Microsoft identity platform, tenant-scoped)
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.MSALClientID,
		ClientSecret: cfg.MSALClientSecret,
		Scopes:       auth.Scopes,
		Endpoint:     microsoft.AzureADEndpoint(cfg.MSALTenantID),
	}
	authService := auth.NewService(oauthConfig, dynamoClient, cfg.AccountsTable, encryptor)

	// Application state, knowledge, completion
	store := state.NewStore(dynamoClient, cfg.AppStateTable)
	registry := knowledge.NewRegistry(store)
	factory := completion.NewFactory(cfg.GeminiAPIKey, cfg.OpenAIAPIKey, cfg.AnthropicAPIKey)

	graphHandler := handler.NewGraphHandler(authService, sessions, "")

	return &App{
		cfg:               cfg,
		authHandler:       handler.NewAuthHandler(authService, sessions, cfg.AppURI),
		profileHandler:    handler.NewProfileHandler(graphHandler),
		configHandler:     handler.NewConfigHandler(cfg),
		completionHandler: handler.NewCompletionHandler(sessions, store, registry, factory),
		graphHandler:      graphHandler,
		knowledgeHandler:  handler.NewKnowledgeHandler(sessions, registry),
		stateHandler:      handler.NewStateHandler(sessions, store, registry),
		settingsHandler:   handler.NewSettingsHandler(sessions, store),
	}
}

// HandleRequest routes API Gateway requests to the appropriate handler.
func (app *App) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	path := req.Path
	method := req.HTTPMethod

	fmt.Printf("Request: %s %s\n", method, path)

	// CORS Preflight
	if method == "OPTIONS" {
		return app.corsResponse(events.APIGatewayProxyResponse{StatusCode: 204}), nil
	}

	// Strip /api prefix if present (CDN proxying)
	path = strings.TrimPrefix(path, "/api")

	// /auth
	if strings.HasPrefix(path, "/auth") {
		if path == "/auth/login" && method == "GET" {
			return app.corsResponse(must(app.authHandler.Login(ctx, req))), nil
		}
		if path == "/auth/callback" && method == "GET" {
			return app.corsResponse(must(app.authHandler.Callback(ctx, req))), nil
		}
		if path == "/auth/logout" && method == "GET" {
			return app.corsResponse(must(app.authHandler.Logout(ctx, req))), nil
		}
	}

	if path == "/user/profile" && method == "GET" {
		return app.corsResponse(must(app.profileHandler.Get(ctx, req))), nil
	}

	if path == "/config" && method == "GET" {
		return app.corsResponse(must(app.configHandler.Get(ctx, req))), nil
	}

	if path == "/gemini" && method == "POST" {
		return app.corsResponse(must(app.completionHandler.Generate(ctx, req))), nil
	}

	if path == "/graph" && method == "GET" {
		return app.corsResponse(must(app.graphHandler.Proxy(ctx, req))), nil
	}

	// /knowledge
	if strings.HasPrefix(path, "/knowledge") {
		if path == "/knowledge/list" && method == "GET" {
			return app.corsResponse(must(app.knowledgeHandler.List(ctx, req))), nil
		}
		if path == "/knowledge/upload" && method == "POST" {
			return app.corsResponse(must(app.knowledgeHandler.Upload(ctx, req))), nil
		}
		if path == "/knowledge/delete" && method == "POST" {
			return app.corsResponse(must(app.knowledgeHandler.Delete(ctx, req))), nil
		}
	}

	// /state
	if path == "/state" {
		if method == "GET" {
			return app.corsResponse(must(app.stateHandler.Get(ctx, req))), nil
		}
		if method == "POST" {
			return app.corsResponse(must(app.stateHandler.Replace(ctx, req))), nil
		}
	}

	// /settings/{container|global}[/action]
	if strings.HasPrefix(path, "/settings/") {
		rest := strings.TrimPrefix(path, "/settings/")
		entity, action, _ := strings.Cut(rest, "/")
		switch entity {
		case "container":
			return app.corsResponse(must(app.settingsHandler.Container(ctx, req, action))), nil
		case "global":
			return app.corsResponse(must(app.settingsHandler.Global(ctx, req, action))), nil
		}
	}

	return app.corsResponse(events.APIGatewayProxyResponse{
		StatusCode: http.StatusNotFound,
		Body:       fmt.Sprintf("Not Found: %s %s", method, path),
	}), nil
}

// corsResponse adds CORS headers to an API Gateway response.
func (app *App) corsResponse(resp events.APIGatewayProxyResponse) events.APIGatewayProxyResponse {
	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	resp.Headers["Access-Control-Allow-Origin"] = app.cfg.AppURI
	resp.Headers["Access-Control-Allow-Credentials"] = "true"
	resp.Headers["Access-Control-Allow-Methods"] = "GET,POST,PUT,OPTIONS"
	resp.Headers["Access-Control-Allow-Headers"] = "Content-Type"
	return resp
}

// must unwraps a handler response, swallowing the error into a 500.
func must(resp events.APIGatewayProxyResponse, err error) events.APIGatewayProxyResponse {
	if err != nil {
		fmt.Printf("Handler error: %v\n", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Internal Server Error"}
	}
	return resp
}
