package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "TouristQuiz API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the TouristQuiz proximity quiz game.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// POST /api/register
	postRegister, _ := r.NewOperationContext(http.MethodPost, "/api/register")
	postRegister.SetSummary("Register")
	postRegister.SetDescription("Creates a user account.")
	postRegister.AddReqStructure(RegisterRequest{})
	postRegister.AddRespStructure(RegisterResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	postRegister.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postRegister.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postRegister)

	// POST /api/login
	postLogin, _ := r.NewOperationContext(http.MethodPost, "/api/login")
	postLogin.SetSummary("Log in")
	postLogin.SetDescription("Authenticates with username and password. Returns a session token.")
	postLogin.AddReqStructure(LoginRequest{})
	postLogin.AddRespStructure(LoginResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postLogin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postLogin)

	// POST /api/logout
	postLogout, _ := r.NewOperationContext(http.MethodPost, "/api/logout")
	postLogout.SetSummary("Log out")
	postLogout.SetDescription("Ends the session and stops location tracking. Requires Bearer token.")
	postLogout.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	postLogout.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postLogout)

	// GET /api/objects
	listObjects, _ := r.NewOperationContext(http.MethodGet, "/api/objects")
	listObjects.SetSummary("List tourist objects")
	listObjects.SetDescription("Returns all tourist objects. Requires Bearer token.")
	listObjects.AddRespStructure([]TouristObject{}, openapi.WithHTTPStatus(http.StatusOK))
	listObjects.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(listObjects)

	// POST /api/objects
	createObject, _ := r.NewOperationContext(http.MethodPost, "/api/objects")
	createObject.SetSummary("Create tourist object")
	createObject.SetDescription("Creates a tourist object with optional questions and awards creation points. Requires Bearer token.")
	createObject.AddReqStructure(CreateObjectRequest{})
	createObject.AddRespStructure(TouristObject{}, openapi.WithHTTPStatus(http.StatusCreated))
	createObject.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	createObject.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(createObject)

	// DELETE /api/objects/{objectID}
	deleteObject, _ := r.NewOperationContext(http.MethodDelete, "/api/objects/{objectID}")
	deleteObject.SetSummary("Delete tourist object")
	deleteObject.SetDescription("Deletes an object with its questions and answer records. Owner only. Requires Bearer token.")
	deleteObject.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	deleteObject.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	deleteObject.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(deleteObject)

	// GET /api/objects/{objectID}/questions
	listQuestions, _ := r.NewOperationContext(http.MethodGet, "/api/objects/{objectID}/questions")
	listQuestions.SetSummary("List questions")
	listQuestions.SetDescription("Returns the questions of a tourist object. Requires Bearer token.")
	listQuestions.AddRespStructure([]Question{}, openapi.WithHTTPStatus(http.StatusOK))
	listQuestions.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(listQuestions)

	// POST /api/objects/{objectID}/questions
	addQuestion, _ := r.NewOperationContext(http.MethodPost, "/api/objects/{objectID}/questions")
	addQuestion.SetSummary("Add question")
	addQuestion.SetDescription("Adds a question to an object. Owner only. Requires Bearer token.")
	addQuestion.AddReqStructure(NewQuestion{})
	addQuestion.AddRespStructure(Question{}, openapi.WithHTTPStatus(http.StatusCreated))
	addQuestion.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	addQuestion.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	addQuestion.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(addQuestion)

	// POST /api/objects/{objectID}/questions/{questionID}/answer
	postAnswer, _ := r.NewOperationContext(http.MethodPost, "/api/objects/{objectID}/questions/{questionID}/answer")
	postAnswer.SetSummary("Submit answer")
	postAnswer.SetDescription("Submits an answer. Each question is scored at most once per user. Requires Bearer token.")
	postAnswer.AddReqStructure(AnswerRequest{})
	postAnswer.AddRespStructure(AnswerResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postAnswer.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postAnswer.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(postAnswer)

	// POST /api/objects/{objectID}/questions/{questionID}/rating
	postRating, _ := r.NewOperationContext(http.MethodPost, "/api/objects/{objectID}/questions/{questionID}/rating")
	postRating.SetSummary("Rate question")
	postRating.SetDescription("Rates a question from 1 to 5. Re-rating overwrites the previous value. Requires Bearer token.")
	postRating.AddReqStructure(RateQuestionRequest{})
	postRating.AddRespStructure(Question{}, openapi.WithHTTPStatus(http.StatusOK))
	postRating.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postRating.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	postRating.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(postRating)

	// GET /api/objects/{objectID}/answered
	getAnswered, _ := r.NewOperationContext(http.MethodGet, "/api/objects/{objectID}/answered")
	getAnswered.SetSummary("Answered questions")
	getAnswered.SetDescription("Returns the ids of questions the user has already been scored for. Requires Bearer token.")
	getAnswered.AddRespStructure(AnsweredResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getAnswered.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getAnswered)

	// GET /api/leaderboard
	getLeaderboard, _ := r.NewOperationContext(http.MethodGet, "/api/leaderboard")
	getLeaderboard.SetSummary("Leaderboard")
	getLeaderboard.SetDescription("Returns the top users by points, best first. Requires Bearer token.")
	getLeaderboard.AddRespStructure(LeaderboardResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getLeaderboard.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getLeaderboard)

	// POST /api/location
	postLocation, _ := r.NewOperationContext(http.MethodPost, "/api/location")
	postLocation.SetSummary("Report location")
	postLocation.SetDescription("Reports a location fix for proximity tracking. Requires Bearer token.")
	postLocation.AddReqStructure(LocationRequest{})
	postLocation.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusAccepted))
	postLocation.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postLocation)

	// GET /api/location/ws
	getLocationWS, _ := r.NewOperationContext(http.MethodGet, "/api/location/ws")
	getLocationWS.SetSummary("Location stream")
	getLocationWS.SetDescription("Upgrades to a WebSocket that streams location fixes. Pass token as query parameter.")
	getLocationWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getLocationWS)

	// GET /api/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/events")
	getEvents.SetSummary("SSE event stream")
	getEvents.SetDescription("Server-Sent Events stream for proximity alerts and list updates. Pass token as query parameter.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// POST /api/images
	postImage, _ := r.NewOperationContext(http.MethodPost, "/api/images")
	postImage.SetSummary("Upload image")
	postImage.SetDescription("Uploads an object or profile image. Returns its public URL. Requires Bearer token.")
	postImage.AddRespStructure(UploadImageResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	postImage.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postImage)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
