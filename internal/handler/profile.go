package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/jun/workspacehub/internal/model"
)

// ProfileHandler builds the client profile from the graph's /me endpoints.
// It reuses the GraphHandler's token acquisition and upstream transport.
type ProfileHandler struct {
	graph *GraphHandler
}

// NewProfileHandler creates a ProfileHandler over graph.
func NewProfileHandler(graph *GraphHandler) *ProfileHandler {
	return &ProfileHandler{graph: graph}
}

type graphMe struct {
	GivenName         string `json:"givenName"`
	Surname           string `json:"surname"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// Get returns the profile of the signed-in account. The photo is optional:
// a missing photo degrades to an empty avatar URL, never an error.
func (h *ProfileHandler) Get(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	accessToken, errResp := h.graph.token(ctx, req)
	if errResp != nil {
		return *errResp, nil
	}

	meResp, err := h.graph.get(ctx, accessToken, "/me")
	if err != nil {
		log.Printf("profile: /me request failed: %v", err)
		return textResponse(http.StatusInternalServerError, "Failed to load profile"), nil
	}
	defer meResp.Body.Close()
	if meResp.StatusCode != http.StatusOK {
		log.Printf("profile: /me returned %d", meResp.StatusCode)
		return textResponse(http.StatusInternalServerError, "Failed to load profile"), nil
	}

	var me graphMe
	if err := json.NewDecoder(meResp.Body).Decode(&me); err != nil {
		log.Printf("profile: failed to decode /me: %v", err)
		return textResponse(http.StatusInternalServerError, "Failed to load profile"), nil
	}

	user := model.User{
		FirstName: me.GivenName,
		LastName:  me.Surname,
		Email:     me.Mail,
	}
	if user.Email == "" {
		user.Email = me.UserPrincipalName
	}
	if user.FirstName == "" && me.DisplayName != "" {
		parts := strings.SplitN(me.DisplayName, " ", 2)
		user.FirstName = parts[0]
		if len(parts) > 1 && user.LastName == "" {
			user.LastName = parts[1]
		}
	}
	user.AvatarURL = h.fetchAvatar(ctx, accessToken)

	return jsonResponse(http.StatusOK, user), nil
}

func (h *ProfileHandler) fetchAvatar(ctx context.Context, accessToken string) string {
	photoResp, err := h.graph.get(ctx, accessToken, "/me/photo/$value")
	if err != nil {
		log.Printf("profile: photo request failed: %v", err)
		return ""
	}
	defer photoResp.Body.Close()
	if photoResp.StatusCode != http.StatusOK {
		return ""
	}

	photo, err := io.ReadAll(photoResp.Body)
	if err != nil {
		return ""
	}
	contentType := photoResp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(photo)
}
