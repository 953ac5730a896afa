package tests

import (
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/trezcool/mapato/core/user"
	testutil "github.com/trezcool/mapato/tests"
)

func TestUserAPI_login(t *testing.T) {
	app := setup(t)

	usr := testutil.CreateUser(t, app.usrRepo, "King Leo", "leo", "leo@test.cd", "Kinshasa123", nil, true)
	testutil.CreateUser(t, app.usrRepo, "Gone Guy", "gone", "gone@test.cd", "Kinshasa123", nil, false)

	tests := []httpTest{
		{name: "empty body", body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{
			name:     "unknown user",
			body:     []byte(`{"username": "who", "password": "dis"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "wrong password",
			body:     []byte(`{"username": "leo", "password": "dis"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "deactivated account",
			body:     []byte(`{"username": "gone", "password": "Kinshasa123"}`),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "login with username", body: []byte(`{"username": "leo", "password": "Kinshasa123"}`), wantCode: http.StatusOK},
		{name: "login with email", body: []byte(`{"username": "leo@test.cd", "password": "Kinshasa123"}`), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if rec.Code == http.StatusOK {
				var resp struct {
					Token string `json:"token"`
				}
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("unmarshalling response: %v", err)
				}
				if resp.Token == "" {
					t.Error("expected a token")
				}
			}
		})
	}

	t.Run("last login is set", func(t *testing.T) {
		refreshed, err := app.usrRepo.GetUserByID(usr.ID)
		if err != nil {
			t.Fatalf("GetUserByID() failed, %v", err)
		}
		if refreshed.LastLogin.IsZero() {
			t.Error("expected LastLogin to be set")
		}
	})
}

func TestUserAPI_query(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin", "admin@test.cd", "Kinshasa123",
		[]string{user.RoleAdministrator}, true)
	student := testutil.CreateUser(t, app.usrRepo, "Student", "stud", "stud@test.cd", "Kinshasa123",
		[]string{user.RoleStudent}, true)

	tests := []httpTest{
		{
			name:     "anonymous",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "non-admin",
			token:    getToken(t, student),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "admin", token: getToken(t, admin), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/users", tt.token)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if rec.Code == http.StatusOK {
				var users []user.User
				if err := json.Unmarshal(rec.Body.Bytes(), &users); err != nil {
					t.Fatalf("unmarshalling response: %v", err)
				}
				if len(users) != 2 {
					t.Errorf("got %d users, want 2", len(users))
				}
			}
		})
	}
}

func TestUserAPI_retrieve(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin", "admin@test.cd", "Kinshasa123",
		[]string{user.RoleAdministrator}, true)
	alice := testutil.CreateUser(t, app.usrRepo, "Alice", "alice", "alice@test.cd", "Kinshasa123",
		[]string{user.RoleStudent}, true)
	bob := testutil.CreateUser(t, app.usrRepo, "Bob", "bob", "bob@test.cd", "Kinshasa123",
		[]string{user.RoleStudent}, true)

	itoa := strconv.Itoa

	tests := []httpTest{
		{
			name:     "own profile",
			path:     "/v1/users/" + itoa(alice.ID),
			token:    getToken(t, alice),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, alice),
		},
		{
			name:     "someone else's profile is hidden",
			path:     "/v1/users/" + itoa(bob.ID),
			token:    getToken(t, alice),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name:     "admin sees anyone",
			path:     "/v1/users/" + itoa(bob.ID),
			token:    getToken(t, admin),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, bob),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
