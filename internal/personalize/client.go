package personalize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/personalize-migrate/internal/failures"
)

const (
	clientComponentConstant                = "PersonalizeClient"
	authTokenHeaderNameConstant            = "authtoken"
	authorizationHeaderNameConstant        = "Authorization"
	authorizationBearerTemplateConstant    = "Bearer %s"
	projectHeaderNameConstant              = "x-project-uid"
	contentTypeHeaderNameConstant          = "Content-Type"
	jsonContentTypeConstant                = "application/json"
	attributesEndpointConstant             = "attributes"
	audiencesEndpointConstant              = "audiences"
	experiencesEndpointConstant            = "experiences"
	experienceVersionsEndpointTemplate     = "experiences/%s/versions"
	experienceVersionEndpointTemplate      = "experiences/%s/versions/%s"
	currentUserEndpointConstant            = "v3/user"
	defaultRequestTimeoutConstant          = 30 * time.Second
	authTokenMissingMessageConstant        = "CONTENTSTACK_AUTH_TOKEN environment variable is required"
	apiURLMissingMessageConstant           = "Personalize API URL is required"
	contentstackURLMissingMessageConstant  = "Contentstack base URL is required"
	noResponseMessageConstant              = "No response received from server"
	httpStatusMessageTemplateConstant      = "HTTP %d: %s"
	requestCreationErrorTemplateConstant   = "%s request creation failed: %s"
	payloadEncodingErrorTemplateConstant   = "%s payload encoding failed: %s"
	responseReadErrorTemplateConstant      = "%s response read failed: %s"
	responseDecodingErrorTemplateConstant  = "%s response decoding failed: %s"
	experienceUIDRequiredMessageConstant   = "experience UID is required"
	apiRequestLogMessageConstant           = "Personalize API request"
	apiSuccessLogMessageConstant           = "Personalize API request succeeded"
	apiFailureLogMessageConstant           = "Personalize API request failed"
	logFieldOperationConstant              = "operation"
	logFieldMethodConstant                 = "method"
	logFieldEndpointConstant               = "endpoint"
	logFieldProjectConstant                = "project_uid"
	logFieldStatusCodeConstant             = "status_code"
	listAttributesOperationNameConstant    = OperationName("ListAttributes")
	listAudiencesOperationNameConstant     = OperationName("ListAudiences")
	listExperiencesOperationNameConstant   = OperationName("ListExperiences")
	listVersionsOperationNameConstant      = OperationName("ListExperienceVersions")
	createAttributeOperationNameConstant   = OperationName("CreateAttribute")
	createAudienceOperationNameConstant    = OperationName("CreateAudience")
	createExperienceOperationNameConstant  = OperationName("CreateExperience")
	updateVersionOperationNameConstant     = OperationName("UpdateExperienceVersion")
	verifyAuthTokenOperationNameConstant   = OperationName("VerifyAuthToken")
	errorResponseMessageFieldNameConstant  = "message"
	endpointSeparatorConstant              = "/"
	successfulStatusCodeLowerBoundConstant = 200
	successfulStatusCodeUpperBoundConstant = 300
)

// OperationName describes a named Personalize API call supported by the client.
type OperationName string

// ClientConfiguration describes how to reach the Personalize and Contentstack APIs.
type ClientConfiguration struct {
	AuthToken           string
	APIBaseURL          string
	ContentstackBaseURL string
	RequestTimeout      time.Duration
	HTTPClient          *http.Client
	Logger              *zap.Logger
}

// Client issues authenticated requests against the Personalize REST API.
type Client struct {
	httpClient          *http.Client
	authToken           string
	apiBaseURL          string
	contentstackBaseURL string
	logger              *zap.Logger
}

// ProjectClient scopes Client operations to a single project.
type ProjectClient struct {
	client     *Client
	projectUID ProjectUID
}

// NewClient validates the configuration and constructs a Client.
func NewClient(configuration ClientConfiguration) (*Client, error) {
	authToken := strings.TrimSpace(configuration.AuthToken)
	if len(authToken) == 0 {
		return nil, failures.NewConfigurationError(clientComponentConstant, authTokenMissingMessageConstant)
	}

	apiBaseURL := strings.TrimRight(strings.TrimSpace(configuration.APIBaseURL), endpointSeparatorConstant)
	if len(apiBaseURL) == 0 {
		return nil, failures.NewConfigurationError(clientComponentConstant, apiURLMissingMessageConstant)
	}

	httpClient := configuration.HTTPClient
	if httpClient == nil {
		requestTimeout := configuration.RequestTimeout
		if requestTimeout <= 0 {
			requestTimeout = defaultRequestTimeoutConstant
		}
		httpClient = &http.Client{Timeout: requestTimeout}
	}

	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		httpClient:          httpClient,
		authToken:           authToken,
		apiBaseURL:          apiBaseURL,
		contentstackBaseURL: strings.TrimRight(strings.TrimSpace(configuration.ContentstackBaseURL), endpointSeparatorConstant),
		logger:              logger,
	}, nil
}

// Project returns a client scoped to the provided project.
func (client *Client) Project(projectUID ProjectUID) *ProjectClient {
	return &ProjectClient{client: client, projectUID: projectUID}
}

// VerifyAuthToken confirms the configured token is accepted by the Contentstack user endpoint.
func (client *Client) VerifyAuthToken(executionContext context.Context) error {
	if len(client.contentstackBaseURL) == 0 {
		return failures.NewConfigurationError(string(verifyAuthTokenOperationNameConstant), contentstackURLMissingMessageConstant)
	}

	headers := map[string]string{
		authorizationHeaderNameConstant: fmt.Sprintf(authorizationBearerTemplateConstant, client.authToken),
	}

	return client.execute(executionContext, requestDetails{
		operation:         verifyAuthTokenOperationNameConstant,
		method:            http.MethodGet,
		baseURL:           client.contentstackBaseURL,
		endpoint:          currentUserEndpointConstant,
		additionalHeaders: headers,
	})
}

// ProjectUID reports the project the client is scoped to.
func (projectClient *ProjectClient) ProjectUID() ProjectUID {
	return projectClient.projectUID
}

// ListAttributes fetches every attribute in the project.
func (projectClient *ProjectClient) ListAttributes(executionContext context.Context) ([]Attribute, error) {
	var attributes []Attribute
	requestError := projectClient.send(executionContext, listAttributesOperationNameConstant, http.MethodGet, attributesEndpointConstant, nil, &attributes)
	if requestError != nil {
		return nil, requestError
	}
	return attributes, nil
}

// ListAudiences fetches every audience in the project.
func (projectClient *ProjectClient) ListAudiences(executionContext context.Context) ([]Audience, error) {
	var audiences []Audience
	requestError := projectClient.send(executionContext, listAudiencesOperationNameConstant, http.MethodGet, audiencesEndpointConstant, nil, &audiences)
	if requestError != nil {
		return nil, requestError
	}
	return audiences, nil
}

// ListExperiences fetches every experience in the project.
func (projectClient *ProjectClient) ListExperiences(executionContext context.Context) ([]Experience, error) {
	var experiences []Experience
	requestError := projectClient.send(executionContext, listExperiencesOperationNameConstant, http.MethodGet, experiencesEndpointConstant, nil, &experiences)
	if requestError != nil {
		return nil, requestError
	}
	return experiences, nil
}

// ListExperienceVersions fetches the versions owned by an experience.
func (projectClient *ProjectClient) ListExperienceVersions(executionContext context.Context, experienceUID string) ([]ExperienceVersion, error) {
	trimmedExperienceUID := strings.TrimSpace(experienceUID)
	if len(trimmedExperienceUID) == 0 {
		return nil, failures.NewValidationError(string(listVersionsOperationNameConstant), experienceUIDRequiredMessageConstant)
	}

	endpoint := fmt.Sprintf(experienceVersionsEndpointTemplate, url.PathEscape(trimmedExperienceUID))

	var versions []ExperienceVersion
	requestError := projectClient.send(executionContext, listVersionsOperationNameConstant, http.MethodGet, endpoint, nil, &versions)
	if requestError != nil {
		return nil, requestError
	}
	return versions, nil
}

// CreateAttribute creates an attribute and returns it with its assigned identifier.
func (projectClient *ProjectClient) CreateAttribute(executionContext context.Context, payload AttributePayload) (Attribute, error) {
	var created Attribute
	requestError := projectClient.send(executionContext, createAttributeOperationNameConstant, http.MethodPost, attributesEndpointConstant, payload, &created)
	if requestError != nil {
		return Attribute{}, requestError
	}
	return created, nil
}

// CreateAudience creates an audience and returns it with its assigned identifier.
func (projectClient *ProjectClient) CreateAudience(executionContext context.Context, payload AudiencePayload) (Audience, error) {
	var created Audience
	requestError := projectClient.send(executionContext, createAudienceOperationNameConstant, http.MethodPost, audiencesEndpointConstant, payload, &created)
	if requestError != nil {
		return Audience{}, requestError
	}
	return created, nil
}

// CreateExperience creates an experience and returns it with its assigned identifier.
func (projectClient *ProjectClient) CreateExperience(executionContext context.Context, payload ExperiencePayload) (Experience, error) {
	var created Experience
	requestError := projectClient.send(executionContext, createExperienceOperationNameConstant, http.MethodPost, experiencesEndpointConstant, payload, &created)
	if requestError != nil {
		return Experience{}, requestError
	}
	return created, nil
}

// UpdateExperienceVersion replaces the addressed version slot of an experience.
// An empty versionID addresses the latest slot.
func (projectClient *ProjectClient) UpdateExperienceVersion(executionContext context.Context, experienceUID string, versionID string, payload VersionPayload) error {
	trimmedExperienceUID := strings.TrimSpace(experienceUID)
	if len(trimmedExperienceUID) == 0 {
		return failures.NewValidationError(string(updateVersionOperationNameConstant), experienceUIDRequiredMessageConstant)
	}

	addressedVersion := strings.TrimSpace(versionID)
	if len(addressedVersion) == 0 {
		addressedVersion = LatestVersionToken
	}

	endpoint := fmt.Sprintf(experienceVersionEndpointTemplate, url.PathEscape(trimmedExperienceUID), url.PathEscape(addressedVersion))
	return projectClient.send(executionContext, updateVersionOperationNameConstant, http.MethodPut, endpoint, payload, nil)
}

func (projectClient *ProjectClient) send(executionContext context.Context, operation OperationName, method string, endpoint string, payload any, responseTarget any) error {
	return projectClient.client.execute(executionContext, requestDetails{
		operation:      operation,
		method:         method,
		baseURL:        projectClient.client.apiBaseURL,
		endpoint:       endpoint,
		projectUID:     projectClient.projectUID,
		payload:        payload,
		responseTarget: responseTarget,
	})
}

type requestDetails struct {
	operation         OperationName
	method            string
	baseURL           string
	endpoint          string
	projectUID        ProjectUID
	payload           any
	responseTarget    any
	additionalHeaders map[string]string
}

func (client *Client) execute(executionContext context.Context, details requestDetails) error {
	component := string(details.operation)
	requestURL := details.baseURL + endpointSeparatorConstant + details.endpoint

	var requestBody io.Reader
	if details.payload != nil {
		payloadBytes, encodingError := json.Marshal(details.payload)
		if encodingError != nil {
			return failures.Normalize(component, fmt.Errorf(payloadEncodingErrorTemplateConstant, details.operation, encodingError))
		}
		requestBody = bytes.NewReader(payloadBytes)
	}

	request, requestError := http.NewRequestWithContext(executionContext, details.method, requestURL, requestBody)
	if requestError != nil {
		return failures.Normalize(component, fmt.Errorf(requestCreationErrorTemplateConstant, details.operation, requestError))
	}

	request.Header.Set(contentTypeHeaderNameConstant, jsonContentTypeConstant)
	request.Header.Set(authTokenHeaderNameConstant, client.authToken)
	if len(details.projectUID) > 0 {
		request.Header.Set(projectHeaderNameConstant, string(details.projectUID))
	}
	for headerName, headerValue := range details.additionalHeaders {
		request.Header.Set(headerName, headerValue)
	}

	requestFields := []zap.Field{
		zap.String(logFieldOperationConstant, component),
		zap.String(logFieldMethodConstant, details.method),
		zap.String(logFieldEndpointConstant, details.endpoint),
		zap.String(logFieldProjectConstant, string(details.projectUID)),
	}
	client.logger.Debug(apiRequestLogMessageConstant, requestFields...)

	response, responseError := client.httpClient.Do(request)
	if responseError != nil {
		apiError := failures.NewAPIError(component, noResponseMessageConstant, 0, "", responseError)
		client.logger.Warn(apiFailureLogMessageConstant, append(requestFields, zap.Error(apiError))...)
		return apiError
	}
	defer response.Body.Close()

	responseBytes, readError := io.ReadAll(response.Body)
	if readError != nil {
		return failures.NewAPIError(component, fmt.Sprintf(responseReadErrorTemplateConstant, details.operation, readError), response.StatusCode, "", readError)
	}

	if response.StatusCode < successfulStatusCodeLowerBoundConstant || response.StatusCode >= successfulStatusCodeUpperBoundConstant {
		apiError := failures.NewAPIError(component, describeFailedResponse(response.StatusCode, responseBytes), response.StatusCode, string(responseBytes), nil)
		client.logger.Warn(apiFailureLogMessageConstant, append(requestFields, zap.Int(logFieldStatusCodeConstant, response.StatusCode), zap.Error(apiError))...)
		return apiError
	}

	client.logger.Debug(apiSuccessLogMessageConstant, append(requestFields, zap.Int(logFieldStatusCodeConstant, response.StatusCode))...)

	if details.responseTarget == nil || len(bytes.TrimSpace(responseBytes)) == 0 {
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(responseBytes))
	decoder.UseNumber()
	if decodingError := decoder.Decode(details.responseTarget); decodingError != nil {
		return failures.NewAPIError(component, fmt.Sprintf(responseDecodingErrorTemplateConstant, details.operation, decodingError), response.StatusCode, string(responseBytes), decodingError)
	}

	return nil
}

func describeFailedResponse(statusCode int, responseBytes []byte) string {
	var errorResponse map[string]any
	if json.Unmarshal(responseBytes, &errorResponse) == nil {
		if message, isString := errorResponse[errorResponseMessageFieldNameConstant].(string); isString && len(strings.TrimSpace(message)) > 0 {
			return message
		}
	}
	return fmt.Sprintf(httpStatusMessageTemplateConstant, statusCode, http.StatusText(statusCode))
}
