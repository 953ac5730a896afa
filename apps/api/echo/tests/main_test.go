package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"github.com/trezcool/mapato/core"
	"github.com/trezcool/mapato/core/account"
	"github.com/trezcool/mapato/core/audit"
	"github.com/trezcool/mapato/core/course"
	"github.com/trezcool/mapato/core/notification"
	"github.com/trezcool/mapato/core/split"
	"github.com/trezcool/mapato/core/submission"
	"github.com/trezcool/mapato/core/user"

	. "github.com/trezcool/mapato/apps/api/echo"
	emailsvc "github.com/trezcool/mapato/services/email"
	inmemdb "github.com/trezcool/mapato/storage/database/inmem"
	testutil "github.com/trezcool/mapato/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

func TestMain(m *testing.M) {
	core.Conf.TestMode = true
	core.Conf.Debug = false // exercise the prod error payloads
	os.Exit(m.Run())
}

type testApp struct {
	server Server

	usrRepo  user.Repository
	usrSvc   *user.Service
	crsRepo  course.Repository
	subRepo  submission.Repository
	subSvc   *submission.Service
	splitSvc *split.Service
	calc     *split.Calculator
	acctSvc  *account.Service
}

func setup(t *testing.T) *testApp {
	t.Helper()

	db := inmemdb.Open()
	logger := testutil.Logger{}
	mailSvc := emailsvc.NewConsoleServiceMock()

	usrRepo := inmemdb.NewUserRepository(db)
	crsRepo := inmemdb.NewCourseRepository(db)
	subRepo := inmemdb.NewSubmissionRepository(db)
	splitRepo := inmemdb.NewSplitRepository(db)

	usrSvc := user.NewService(usrRepo, mailSvc)
	crsSvc := course.NewService(crsRepo)
	subSvc := submission.NewService(subRepo)
	auditSvc := audit.NewService(inmemdb.NewAuditRepository(db))
	notifSvc := notification.NewService(inmemdb.NewNotificationRepository(db))
	splitSvc := split.NewService(splitRepo, usrSvc, crsSvc, auditSvc, mailSvc, logger)
	acctSvc := account.NewService(inmemdb.NewAccountRepository(db), usrSvc, notifSvc, auditSvc, mailSvc, logger)
	calc := split.NewCalculator(splitRepo, subSvc, crsSvc, usrSvc, logger)
	subSvc.OnSaved(func(submissionID int) {
		if err := calc.Recalculate(submissionID); err != nil {
			t.Errorf("Recalculate(%d): %v", submissionID, err)
		}
	})
	subSvc.OnDeleted(func(submissionID int) {
		if err := splitRepo.DeleteIncomeBySubmissionID(submissionID); err != nil {
			t.Errorf("DeleteIncomeBySubmissionID(%d): %v", submissionID, err)
		}
	})

	server := NewServer(ServerDeps{
		Logger:         logger,
		DisableReqLogs: true,

		UserSvc:       usrSvc,
		CourseSvc:     crsSvc,
		SubmissionSvc: subSvc,
		SplitSvc:      splitSvc,
		Calculator:    calc,
		AccountSvc:    acctSvc,
		NotifSvc:      notifSvc,
		AuditSvc:      auditSvc,
	})
	return &testApp{
		server:   server,
		usrRepo:  usrRepo,
		usrSvc:   usrSvc,
		crsRepo:  crsRepo,
		subRepo:  subRepo,
		subSvc:   subSvc,
		splitSvc: splitSvc,
		calc:     calc,
		acctSvc:  acctSvc,
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body = %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %s; wantData %s", rec.Body.Bytes(), tt.wantData)
	}
}
