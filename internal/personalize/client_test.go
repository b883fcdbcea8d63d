package personalize_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/personalize-migrate/internal/failures"
	"github.com/temirov/personalize-migrate/internal/personalize"
)

const (
	testAuthTokenConstant   = "token-123"
	testProjectUIDConstant  = "project_one"
	testExperienceUIDConst  = "exp_1"
	testAttributesPayload   = `[{"uid":"attr_1","name":"age","key":"age","__type":"NUMBER"}]`
	testAudiencesPayload    = `[{"uid":"aud_1","name":"Adults","definition":{"ref":"attr_1","value":18}}]`
	testVersionsPayload     = `[{"uid":"ver_1","status":"DRAFT","variants":[{"shortUid":"a","audiences":["aud_1"]}],"variantSplit":"EQUAL"}]`
	testCreatedAttribute    = `{"uid":"attr_new","name":"age","key":"age","__type":"NUMBER"}`
	testErrorMessagePayload = `{"message":"Attribute name already taken"}`
)

type recordedRequest struct {
	method  string
	path    string
	headers http.Header
	body    []byte
}

type recordingServer struct {
	mutex    sync.Mutex
	requests []recordedRequest
	handler  func(responseWriter http.ResponseWriter, request *http.Request)
}

func (server *recordingServer) ServeHTTP(responseWriter http.ResponseWriter, request *http.Request) {
	bodyBytes, _ := io.ReadAll(request.Body)
	server.mutex.Lock()
	server.requests = append(server.requests, recordedRequest{
		method:  request.Method,
		path:    request.URL.Path,
		headers: request.Header.Clone(),
		body:    bodyBytes,
	})
	server.mutex.Unlock()
	server.handler(responseWriter, request)
}

func newTestProjectClient(testInstance *testing.T, handler func(http.ResponseWriter, *http.Request)) (*personalize.ProjectClient, *recordingServer) {
	testInstance.Helper()

	recorder := &recordingServer{handler: handler}
	server := httptest.NewServer(recorder)
	testInstance.Cleanup(server.Close)

	client, clientError := personalize.NewClient(personalize.ClientConfiguration{
		AuthToken:           testAuthTokenConstant,
		APIBaseURL:          server.URL + "/",
		ContentstackBaseURL: server.URL,
	})
	require.NoError(testInstance, clientError)

	return client.Project(personalize.ProjectUID(testProjectUIDConstant)), recorder
}

func TestNewClientValidation(testInstance *testing.T) {
	testCases := []struct {
		name          string
		configuration personalize.ClientConfiguration
	}{
		{
			name:          "missing_auth_token",
			configuration: personalize.ClientConfiguration{APIBaseURL: "https://personalize-api.example.com"},
		},
		{
			name:          "missing_api_url",
			configuration: personalize.ClientConfiguration{AuthToken: testAuthTokenConstant},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			client, creationError := personalize.NewClient(testCase.configuration)
			require.Error(testInstance, creationError)
			require.Nil(testInstance, client)
			require.True(testInstance, failures.IsKind(creationError, failures.KindConfiguration))
		})
	}
}

func TestProjectClientListOperations(testInstance *testing.T) {
	projectClient, recorder := newTestProjectClient(testInstance, func(responseWriter http.ResponseWriter, request *http.Request) {
		switch request.URL.Path {
		case "/attributes":
			_, _ = responseWriter.Write([]byte(testAttributesPayload))
		case "/audiences":
			_, _ = responseWriter.Write([]byte(testAudiencesPayload))
		case "/experiences/" + testExperienceUIDConst + "/versions":
			_, _ = responseWriter.Write([]byte(testVersionsPayload))
		default:
			responseWriter.WriteHeader(http.StatusNotFound)
		}
	})

	attributes, attributesError := projectClient.ListAttributes(context.Background())
	require.NoError(testInstance, attributesError)
	require.Equal(testInstance, []personalize.Attribute{{UID: "attr_1", Name: "age", Key: "age", Type: "NUMBER"}}, attributes)

	audiences, audiencesError := projectClient.ListAudiences(context.Background())
	require.NoError(testInstance, audiencesError)
	require.Len(testInstance, audiences, 1)
	require.Equal(testInstance, map[string]any{"ref": "attr_1", "value": json.Number("18")}, audiences[0].Definition)

	versions, versionsError := projectClient.ListExperienceVersions(context.Background(), testExperienceUIDConst)
	require.NoError(testInstance, versionsError)
	require.Len(testInstance, versions, 1)
	require.Equal(testInstance, personalize.VersionStatusDraft, versions[0].Status)
	require.Equal(testInstance, "EQUAL", versions[0].VariantSplit)
	require.Equal(testInstance, []any{"aud_1"}, versions[0].Variants[0]["audiences"])

	require.Len(testInstance, recorder.requests, 3)
	for _, request := range recorder.requests {
		require.Equal(testInstance, http.MethodGet, request.method)
		require.Equal(testInstance, testAuthTokenConstant, request.headers.Get("authtoken"))
		require.Equal(testInstance, testProjectUIDConstant, request.headers.Get("x-project-uid"))
		require.Equal(testInstance, "application/json", request.headers.Get("Content-Type"))
	}
}

func TestProjectClientWriteOperations(testInstance *testing.T) {
	projectClient, recorder := newTestProjectClient(testInstance, func(responseWriter http.ResponseWriter, request *http.Request) {
		if request.Method == http.MethodPost {
			_, _ = responseWriter.Write([]byte(testCreatedAttribute))
			return
		}
		responseWriter.WriteHeader(http.StatusOK)
	})

	created, createError := projectClient.CreateAttribute(context.Background(), personalize.AttributePayload{Name: "age", Key: "age"})
	require.NoError(testInstance, createError)
	require.Equal(testInstance, "attr_new", created.UID)

	updateError := projectClient.UpdateExperienceVersion(context.Background(), testExperienceUIDConst, "", personalize.VersionPayload{"status": "ACTIVE"})
	require.NoError(testInstance, updateError)

	updateError = projectClient.UpdateExperienceVersion(context.Background(), testExperienceUIDConst, "ver_9", personalize.VersionPayload{"status": "ACTIVE"})
	require.NoError(testInstance, updateError)

	require.Len(testInstance, recorder.requests, 3)
	require.Equal(testInstance, "/attributes", recorder.requests[0].path)
	require.JSONEq(testInstance, `{"name":"age","description":"","key":"age"}`, string(recorder.requests[0].body))
	require.Equal(testInstance, http.MethodPut, recorder.requests[1].method)
	require.Equal(testInstance, "/experiences/exp_1/versions/latest", recorder.requests[1].path)
	require.Equal(testInstance, "/experiences/exp_1/versions/ver_9", recorder.requests[2].path)
	require.JSONEq(testInstance, `{"status":"ACTIVE"}`, string(recorder.requests[2].body))
}

func TestProjectClientFailures(testInstance *testing.T) {
	testCases := []struct {
		name            string
		statusCode      int
		body            string
		expectedMessage string
	}{
		{
			name:            "message_from_body",
			statusCode:      http.StatusUnprocessableEntity,
			body:            testErrorMessagePayload,
			expectedMessage: "Attribute name already taken",
		},
		{
			name:            "status_text_fallback",
			statusCode:      http.StatusInternalServerError,
			body:            "upstream exploded",
			expectedMessage: "HTTP 500: Internal Server Error",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			projectClient, _ := newTestProjectClient(testInstance, func(responseWriter http.ResponseWriter, request *http.Request) {
				responseWriter.WriteHeader(testCase.statusCode)
				_, _ = responseWriter.Write([]byte(testCase.body))
			})

			_, listError := projectClient.ListAttributes(context.Background())
			require.Error(testInstance, listError)

			var apiError failures.Error
			require.ErrorAs(testInstance, listError, &apiError)
			require.Equal(testInstance, failures.KindAPI, apiError.Kind)
			require.Equal(testInstance, testCase.statusCode, apiError.StatusCode)
			require.Equal(testInstance, testCase.body, apiError.ResponseBody)
			require.Equal(testInstance, "ListAttributes", apiError.Component)
			require.Equal(testInstance, testCase.expectedMessage, apiError.Error())
		})
	}
}

func TestProjectClientNoResponse(testInstance *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	serverURL := server.URL
	server.Close()

	client, clientError := personalize.NewClient(personalize.ClientConfiguration{AuthToken: testAuthTokenConstant, APIBaseURL: serverURL})
	require.NoError(testInstance, clientError)

	_, listError := client.Project(personalize.ProjectUID(testProjectUIDConstant)).ListExperiences(context.Background())
	require.Error(testInstance, listError)
	require.True(testInstance, failures.IsKind(listError, failures.KindAPI))
	require.Equal(testInstance, "No response received from server", listError.Error())
}

func TestVerifyAuthToken(testInstance *testing.T) {
	var receivedAuthorization string
	var receivedPath string
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		receivedAuthorization = request.Header.Get("Authorization")
		receivedPath = request.URL.Path
		_, _ = responseWriter.Write([]byte(`{"user":{"uid":"u1"}}`))
	}))
	testInstance.Cleanup(server.Close)

	client, clientError := personalize.NewClient(personalize.ClientConfiguration{
		AuthToken:           testAuthTokenConstant,
		APIBaseURL:          server.URL,
		ContentstackBaseURL: server.URL,
	})
	require.NoError(testInstance, clientError)

	require.NoError(testInstance, client.VerifyAuthToken(context.Background()))
	require.Equal(testInstance, "Bearer "+testAuthTokenConstant, receivedAuthorization)
	require.Equal(testInstance, "/v3/user", receivedPath)
}
