package account

import (
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mapato/core"
	"github.com/trezcool/mapato/core/audit"
	"github.com/trezcool/mapato/core/notification"
	"github.com/trezcool/mapato/core/user"
)

var (
	nowFunc = time.Now // mockable

	fiftyFifty = decimal.NewFromInt(50)

	// errors
	ErrNotFound           = errors.New("account not found")
	ErrAssignmentNotFound = errors.New("account has no active assignment")
	ErrNotPublic          = errors.New("split percentages only apply to public accounts")
)

type (
	Repository interface {
		CreateAccount(a Account) (Account, error)
		QueryAllAccounts() ([]Account, error)
		GetAccountByID(id int) (Account, error)
		UpdateAccount(a Account) (Account, error)
		DeleteAccountsByID(ids ...int) error

		CreateAssignment(a Assignment) (Assignment, error)
		GetActiveAssignment(accountID int) (Assignment, error)
		// DeactivateAssignments marks all of an account's assignments
		// inactive.
		DeactivateAssignments(accountID int) error
		// QueryUserAssignments returns a user's active assignments
		// joined with their accounts.
		QueryUserAssignments(userID int) ([]UserAssignment, error)

		CreateLog(l Log) (Log, error)
		// CountAssignments counts an account's assigned/reassigned
		// log rows.
		CountAssignments(accountID int) (int, error)
		// QueryLogs returns logs newest first; accountID 0 means all.
		QueryLogs(accountID int) ([]Log, error)

		GetFieldLabels() (FieldLabels, error)
		SaveFieldLabels(labels FieldLabels) error
	}

	Service struct {
		repo   Repository
		users  *user.Service
		notifs *notification.Service
		audit  *audit.Service
		mail   core.EmailService
		log    core.Logger
	}
)

func NewService(
	repo Repository,
	userSvc *user.Service,
	notifSvc *notification.Service,
	auditSvc *audit.Service,
	mailSvc core.EmailService,
	log core.Logger,
) *Service {
	return &Service{
		repo:   repo,
		users:  userSvc,
		notifs: notifSvc,
		audit:  auditSvc,
		mail:   mailSvc,
		log:    log,
	}
}

func (svc *Service) Create(actorID int, na NewAccount) (Account, error) {
	now := nowFunc().UTC()
	acct, err := svc.repo.CreateAccount(Account{
		Platform:          na.Platform,
		Username:          na.Username,
		Password:          na.Password,
		Email:             na.Email,
		Notes:             na.Notes,
		Type:              TypeIndividual, // new accounts start as individual
		SplitFirstOwner:   decimal.Zero,
		SplitCurrentOwner: decimal.Zero,
		CustomField1:      na.CustomField1,
		CustomField2:      na.CustomField2,
		CustomField3:      na.CustomField3,
		CustomField4:      na.CustomField4,
		CustomField5:      na.CustomField5,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		return Account{}, err
	}
	svc.record(actorID, "account_created",
		fmt.Sprintf("Account %s (%s) created", acct.Platform, acct.Username),
		map[string]interface{}{"account_id": acct.ID})
	return acct, nil
}

func (svc *Service) QueryAll() ([]Account, error) {
	return svc.repo.QueryAllAccounts()
}

func (svc *Service) GetByID(id int) (Account, error) {
	return svc.repo.GetAccountByID(id)
}

func (svc *Service) Update(actorID, id int, ua UpdateAccount) (Account, error) {
	acct, err := svc.repo.GetAccountByID(id)
	if err != nil {
		return Account{}, err
	}
	if ua.Platform != "" {
		acct.Platform = ua.Platform
	}
	if ua.Username != "" {
		acct.Username = ua.Username
	}
	if ua.Password != "" {
		acct.Password = ua.Password
	}
	if ua.Email != "" {
		acct.Email = ua.Email
	}
	if ua.Notes != "" {
		acct.Notes = ua.Notes
	}
	if ua.CustomField1 != nil {
		acct.CustomField1 = *ua.CustomField1
	}
	if ua.CustomField2 != nil {
		acct.CustomField2 = *ua.CustomField2
	}
	if ua.CustomField3 != nil {
		acct.CustomField3 = *ua.CustomField3
	}
	if ua.CustomField4 != nil {
		acct.CustomField4 = *ua.CustomField4
	}
	if ua.CustomField5 != nil {
		acct.CustomField5 = *ua.CustomField5
	}
	acct.UpdatedAt = nowFunc().UTC()

	acct, err = svc.repo.UpdateAccount(acct)
	if err != nil {
		return Account{}, err
	}
	svc.record(actorID, "account_updated",
		fmt.Sprintf("Account %s (%s) updated", acct.Platform, acct.Username),
		map[string]interface{}{"account_id": acct.ID})
	return acct, nil
}

func (svc *Service) Delete(actorID int, ids ...int) error {
	if err := svc.repo.DeleteAccountsByID(ids...); err != nil {
		return err
	}
	svc.record(actorID, "account_deleted", "Account(s) deleted",
		map[string]interface{}{"account_ids": ids})
	return nil
}

// Assign hands an account to a user: prior assignments are
// deactivated, the first owner is pinned if not set yet and the new
// holder is notified.
func (svc *Service) Assign(actorID, accountID int, aa AssignAccount) (Assignment, error) {
	acct, err := svc.repo.GetAccountByID(accountID)
	if err != nil {
		return Assignment{}, err
	}

	if err = svc.repo.DeactivateAssignments(acct.ID); err != nil {
		return Assignment{}, err
	}
	asgn, err := svc.repo.CreateAssignment(Assignment{
		AccountID:  acct.ID,
		UserID:     aa.UserID,
		Status:     StatusActive,
		Count:      1,
		AssignedAt: nowFunc().UTC(),
	})
	if err != nil {
		return Assignment{}, err
	}

	if !acct.FirstOwnerID.Valid {
		acct.FirstOwnerID = null.IntFrom(aa.UserID)
		if acct, err = svc.repo.UpdateAccount(acct); err != nil {
			return Assignment{}, err
		}
	}

	if _, err = svc.repo.CreateLog(Log{
		AccountID: acct.ID,
		NewUserID: aa.UserID,
		Action:    ActionAssigned,
		Notes:     aa.Notes,
		CreatedAt: nowFunc().UTC(),
	}); err != nil {
		return Assignment{}, err
	}

	svc.notifyAssignment(aa.UserID, acct, notification.ActionAssigned)
	svc.record(actorID, "account_assigned",
		fmt.Sprintf("Account %s (%s) assigned to user %d", acct.Platform, acct.Username, aa.UserID),
		map[string]interface{}{"account_id": acct.ID, "user_id": aa.UserID})
	return asgn, nil
}

// Reassign moves an account to a new holder. An individual account
// with at least one prior assignment flips to public with a 50/50
// ownership split between the first owner and the new holder.
func (svc *Service) Reassign(actorID, accountID int, aa AssignAccount) (Assignment, error) {
	acct, err := svc.repo.GetAccountByID(accountID)
	if err != nil {
		return Assignment{}, err
	}

	var oldUserID int
	if current, err := svc.repo.GetActiveAssignment(acct.ID); err == nil {
		oldUserID = current.UserID
	} else if !errors.Is(err, ErrAssignmentNotFound) {
		return Assignment{}, err
	}

	total, err := svc.repo.CountAssignments(acct.ID)
	if err != nil {
		return Assignment{}, err
	}

	if err = svc.repo.DeactivateAssignments(acct.ID); err != nil {
		return Assignment{}, err
	}
	asgn, err := svc.repo.CreateAssignment(Assignment{
		AccountID:  acct.ID,
		UserID:     aa.UserID,
		Status:     StatusActive,
		Count:      total + 1,
		AssignedAt: nowFunc().UTC(),
	})
	if err != nil {
		return Assignment{}, err
	}

	var typeChanged bool
	if acct.Type == TypeIndividual && total >= 1 {
		acct.Type = TypePublic
		acct.SplitFirstOwner = fiftyFifty
		acct.SplitCurrentOwner = fiftyFifty
		acct.UpdatedAt = nowFunc().UTC()
		if acct, err = svc.repo.UpdateAccount(acct); err != nil {
			return Assignment{}, err
		}
		typeChanged = true
	}

	logEntry := Log{
		AccountID:   acct.ID,
		NewUserID:   aa.UserID,
		Action:      ActionReassigned,
		Notes:       aa.Notes,
		TypeChanged: typeChanged,
		CreatedAt:   nowFunc().UTC(),
	}
	if oldUserID > 0 {
		logEntry.OldUserID = null.IntFrom(oldUserID)
	}
	if _, err = svc.repo.CreateLog(logEntry); err != nil {
		return Assignment{}, err
	}

	if oldUserID > 0 && oldUserID != aa.UserID {
		svc.notifyAssignment(oldUserID, acct, notification.ActionRemoved)
	}
	svc.notifyAssignment(aa.UserID, acct, notification.ActionReassigned)
	if typeChanged && acct.FirstOwnerID.Valid {
		svc.notifySplit(acct, aa.UserID, notification.ActionSplitNotice)
	}

	svc.record(actorID, "account_reassigned",
		fmt.Sprintf("Account %s (%s) reassigned to user %d", acct.Platform, acct.Username, aa.UserID),
		map[string]interface{}{
			"account_id": acct.ID, "user_id": aa.UserID,
			"old_user_id": oldUserID, "type_changed": typeChanged,
		})
	return asgn, nil
}

// SetSplit updates a public account's ownership split and notifies
// both owners; the first configuration and later updates use
// different notices.
func (svc *Service) SetSplit(actorID, accountID int, us UpdateSplit) (Account, error) {
	acct, err := svc.repo.GetAccountByID(accountID)
	if err != nil {
		return Account{}, err
	}
	if acct.Type != TypePublic {
		return Account{}, core.NewValidationError(ErrNotPublic,
			core.FieldError{Field: "account_id", Error: ErrNotPublic.Error()})
	}

	firstConfiguration := !acct.SplitsConfigured

	acct.SplitFirstOwner = us.FirstOwner
	acct.SplitCurrentOwner = us.CurrentOwner
	acct.SplitsConfigured = true
	acct.UpdatedAt = nowFunc().UTC()
	if acct, err = svc.repo.UpdateAccount(acct); err != nil {
		return Account{}, err
	}

	if current, err := svc.repo.GetActiveAssignment(acct.ID); err == nil && acct.FirstOwnerID.Valid {
		action := notification.ActionSplitUpdated
		if firstConfiguration {
			action = notification.ActionSplitConfigured
		}
		svc.notifySplit(acct, current.UserID, action)
	} else if err != nil && !errors.Is(err, ErrAssignmentNotFound) {
		return Account{}, err
	}

	svc.record(actorID, "account_split_updated",
		fmt.Sprintf("Ownership split updated for account %s (%s)", acct.Platform, acct.Username),
		map[string]interface{}{
			"account_id": acct.ID,
			"first":      acct.SplitFirstOwner.String(),
			"current":    acct.SplitCurrentOwner.String(),
		})
	return acct, nil
}

func (svc *Service) UserAssignments(userID int) ([]UserAssignment, error) {
	return svc.repo.QueryUserAssignments(userID)
}

// Logs returns assignment history, newest first; accountID 0 means
// all accounts.
func (svc *Service) Logs(accountID int) ([]Log, error) {
	return svc.repo.QueryLogs(accountID)
}

func (svc *Service) GetFieldLabels() (FieldLabels, error) {
	return svc.repo.GetFieldLabels()
}

func (svc *Service) SaveFieldLabels(actorID int, labels FieldLabels) error {
	if err := svc.repo.SaveFieldLabels(labels); err != nil {
		return err
	}
	svc.record(actorID, "field_labels_updated", "Custom field labels updated", nil)
	return nil
}

func (svc *Service) record(actorID int, typ, msg string, data map[string]interface{}) {
	if err := svc.audit.Record(actorID, typ, msg, data); err != nil {
		svc.log.Error("recording audit entry", err)
	}
}

// notifyAssignment emails the user and drops a dashboard notification.
func (svc *Service) notifyAssignment(userID int, acct Account, action string) {
	var subject, msg string
	switch action {
	case notification.ActionAssigned:
		subject = "New account assigned to you"
		msg = fmt.Sprintf("New account assigned: %s (%s)", acct.Platform, acct.Username)
	case notification.ActionReassigned:
		subject = "Account reassigned to you"
		msg = fmt.Sprintf("Account reassigned to you: %s (%s)", acct.Platform, acct.Username)
	case notification.ActionRemoved:
		subject = "Account access removed"
		msg = fmt.Sprintf("Account access removed: %s (%s)", acct.Platform, acct.Username)
	default:
		return
	}

	svc.sendAccountMail(userID, acct, "account-"+action, subject)
	if _, err := svc.notifs.Notify(userID, acct.ID, action, msg); err != nil {
		svc.log.Error("creating dashboard notification", err, userID)
	}
}

// notifySplit notifies both owners of a public account about its
// ownership split.
func (svc *Service) notifySplit(acct Account, currentUserID int, action string) {
	var subject, template string
	switch action {
	case notification.ActionSplitNotice, notification.ActionSplitConfigured:
		subject = "Account changed to public, split percentage applied"
		template = "split-notice"
	case notification.ActionSplitUpdated:
		subject = "Split percentage updated"
		template = "split-updated"
	default:
		return
	}

	msg := fmt.Sprintf("Ownership split for %s (%s): first owner %s%%, current owner %s%%",
		acct.Platform, acct.Username, acct.SplitFirstOwner.String(), acct.SplitCurrentOwner.String())

	for _, userID := range dedupe([]int{acct.FirstOwnerID.Int, currentUserID}) {
		if userID < 1 {
			continue
		}
		svc.sendAccountMail(userID, acct, template, subject)
		if _, err := svc.notifs.Notify(userID, acct.ID, action, msg); err != nil {
			svc.log.Error("creating dashboard notification", err, userID)
		}
	}
}

func (svc *Service) sendAccountMail(userID int, acct Account, template, subject string) {
	usr, err := svc.users.GetByID(userID)
	if err != nil || usr.Email == "" {
		return
	}
	svc.mail.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      subject,
		TemplateName: template,
		TemplateData: struct {
			User    user.User
			Account Account
		}{usr, acct},
	})
}

func dedupe(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
