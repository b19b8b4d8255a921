package services

import (
	"fmt"

	"shopsuite/internal/models"
)

// Permission keys. Every bundle below must define every key; startup fails
// otherwise. Adding a key here without touching all four bundles is caught
// by ValidatePermissionTable before the server accepts traffic.
const (
	PermUsersView       = "users.view"
	PermUsersCreate     = "users.create"
	PermUsersEdit       = "users.edit"
	PermUsersDelete     = "users.delete"
	PermUsersChangeRole = "users.change_role"

	PermShopsView   = "shops.view"
	PermShopsCreate = "shops.create"
	PermShopsEdit   = "shops.edit"
	PermShopsDelete = "shops.delete"

	PermCompanyView = "company.view"
	PermCompanyEdit = "company.edit"

	PermSubscriptionsView   = "subscriptions.view"
	PermSubscriptionsManage = "subscriptions.manage"

	PermEmailsView = "emails.view"
	PermEmailsSend = "emails.send"

	PermNewslettersView   = "newsletters.view"
	PermNewslettersCreate = "newsletters.create"
	PermNewslettersEdit   = "newsletters.edit"
	PermNewslettersDelete = "newsletters.delete"
	PermNewslettersSend   = "newsletters.send"

	PermCampaignsView   = "campaigns.view"
	PermCampaignsCreate = "campaigns.create"
	PermCampaignsEdit   = "campaigns.edit"
	PermCampaignsDelete = "campaigns.delete"

	PermContactsView   = "contacts.view"
	PermContactsCreate = "contacts.create"
	PermContactsEdit   = "contacts.edit"
	PermContactsDelete = "contacts.delete"
	PermContactsExport = "contacts.export"

	PermFormsView   = "forms.view"
	PermFormsCreate = "forms.create"
	PermFormsEdit   = "forms.edit"
	PermFormsDelete = "forms.delete"

	PermPromotionsView   = "promotions.view"
	PermPromotionsCreate = "promotions.create"
	PermPromotionsEdit   = "promotions.edit"
	PermPromotionsDelete = "promotions.delete"

	PermAppointmentsView   = "appointments.view"
	PermAppointmentsManage = "appointments.manage"

	PermAnalyticsView = "analytics.view"

	PermSettingsView = "settings.view"
	PermSettingsEdit = "settings.edit"

	PermAuditView = "audit.view"
)

// permissionKeys is the canonical key list the bundles are validated against.
var permissionKeys = []string{
	PermUsersView, PermUsersCreate, PermUsersEdit, PermUsersDelete, PermUsersChangeRole,
	PermShopsView, PermShopsCreate, PermShopsEdit, PermShopsDelete,
	PermCompanyView, PermCompanyEdit,
	PermSubscriptionsView, PermSubscriptionsManage,
	PermEmailsView, PermEmailsSend,
	PermNewslettersView, PermNewslettersCreate, PermNewslettersEdit, PermNewslettersDelete, PermNewslettersSend,
	PermCampaignsView, PermCampaignsCreate, PermCampaignsEdit, PermCampaignsDelete,
	PermContactsView, PermContactsCreate, PermContactsEdit, PermContactsDelete, PermContactsExport,
	PermFormsView, PermFormsCreate, PermFormsEdit, PermFormsDelete,
	PermPromotionsView, PermPromotionsCreate, PermPromotionsEdit, PermPromotionsDelete,
	PermAppointmentsView, PermAppointmentsManage,
	PermAnalyticsView,
	PermSettingsView, PermSettingsEdit,
	PermAuditView,
}

// The four bundles are written out in full on purpose: each role's access is
// reviewable line by line, and no bundle is derived from another. The
// administrator bundle deliberately excludes subscriptions.manage and
// settings.edit; those stay owner-only.
var ownerPermissions = map[string]bool{
	PermUsersView: true, PermUsersCreate: true, PermUsersEdit: true, PermUsersDelete: true, PermUsersChangeRole: true,
	PermShopsView: true, PermShopsCreate: true, PermShopsEdit: true, PermShopsDelete: true,
	PermCompanyView: true, PermCompanyEdit: true,
	PermSubscriptionsView: true, PermSubscriptionsManage: true,
	PermEmailsView: true, PermEmailsSend: true,
	PermNewslettersView: true, PermNewslettersCreate: true, PermNewslettersEdit: true, PermNewslettersDelete: true, PermNewslettersSend: true,
	PermCampaignsView: true, PermCampaignsCreate: true, PermCampaignsEdit: true, PermCampaignsDelete: true,
	PermContactsView: true, PermContactsCreate: true, PermContactsEdit: true, PermContactsDelete: true, PermContactsExport: true,
	PermFormsView: true, PermFormsCreate: true, PermFormsEdit: true, PermFormsDelete: true,
	PermPromotionsView: true, PermPromotionsCreate: true, PermPromotionsEdit: true, PermPromotionsDelete: true,
	PermAppointmentsView: true, PermAppointmentsManage: true,
	PermAnalyticsView: true,
	PermSettingsView: true, PermSettingsEdit: true,
	PermAuditView: true,
}

var administratorPermissions = map[string]bool{
	PermUsersView: true, PermUsersCreate: true, PermUsersEdit: true, PermUsersDelete: true, PermUsersChangeRole: true,
	PermShopsView: true, PermShopsCreate: true, PermShopsEdit: true, PermShopsDelete: true,
	PermCompanyView: true, PermCompanyEdit: true,
	PermSubscriptionsView: true, PermSubscriptionsManage: false,
	PermEmailsView: true, PermEmailsSend: true,
	PermNewslettersView: true, PermNewslettersCreate: true, PermNewslettersEdit: true, PermNewslettersDelete: true, PermNewslettersSend: true,
	PermCampaignsView: true, PermCampaignsCreate: true, PermCampaignsEdit: true, PermCampaignsDelete: true,
	PermContactsView: true, PermContactsCreate: true, PermContactsEdit: true, PermContactsDelete: true, PermContactsExport: true,
	PermFormsView: true, PermFormsCreate: true, PermFormsEdit: true, PermFormsDelete: true,
	PermPromotionsView: true, PermPromotionsCreate: true, PermPromotionsEdit: true, PermPromotionsDelete: true,
	PermAppointmentsView: true, PermAppointmentsManage: true,
	PermAnalyticsView: true,
	PermSettingsView: true, PermSettingsEdit: false,
	PermAuditView: true,
}

var managerPermissions = map[string]bool{
	PermUsersView: true, PermUsersCreate: false, PermUsersEdit: false, PermUsersDelete: false, PermUsersChangeRole: false,
	PermShopsView: true, PermShopsCreate: false, PermShopsEdit: true, PermShopsDelete: false,
	PermCompanyView: true, PermCompanyEdit: false,
	PermSubscriptionsView: false, PermSubscriptionsManage: false,
	PermEmailsView: true, PermEmailsSend: true,
	PermNewslettersView: true, PermNewslettersCreate: true, PermNewslettersEdit: true, PermNewslettersDelete: true, PermNewslettersSend: true,
	PermCampaignsView: true, PermCampaignsCreate: true, PermCampaignsEdit: true, PermCampaignsDelete: true,
	PermContactsView: true, PermContactsCreate: true, PermContactsEdit: true, PermContactsDelete: true, PermContactsExport: true,
	PermFormsView: true, PermFormsCreate: true, PermFormsEdit: true, PermFormsDelete: true,
	PermPromotionsView: true, PermPromotionsCreate: true, PermPromotionsEdit: true, PermPromotionsDelete: true,
	PermAppointmentsView: true, PermAppointmentsManage: true,
	PermAnalyticsView: true,
	PermSettingsView: true, PermSettingsEdit: false,
	PermAuditView: false,
}

var employeePermissions = map[string]bool{
	PermUsersView: false, PermUsersCreate: false, PermUsersEdit: false, PermUsersDelete: false, PermUsersChangeRole: false,
	PermShopsView: true, PermShopsCreate: false, PermShopsEdit: false, PermShopsDelete: false,
	PermCompanyView: true, PermCompanyEdit: false,
	PermSubscriptionsView: false, PermSubscriptionsManage: false,
	PermEmailsView: true, PermEmailsSend: false,
	PermNewslettersView: true, PermNewslettersCreate: false, PermNewslettersEdit: false, PermNewslettersDelete: false, PermNewslettersSend: false,
	PermCampaignsView: true, PermCampaignsCreate: false, PermCampaignsEdit: false, PermCampaignsDelete: false,
	PermContactsView: true, PermContactsCreate: true, PermContactsEdit: true, PermContactsDelete: false, PermContactsExport: false,
	PermFormsView: true, PermFormsCreate: false, PermFormsEdit: false, PermFormsDelete: false,
	PermPromotionsView: true, PermPromotionsCreate: false, PermPromotionsEdit: false, PermPromotionsDelete: false,
	PermAppointmentsView: true, PermAppointmentsManage: false,
	PermAnalyticsView: true,
	PermSettingsView: false, PermSettingsEdit: false,
	PermAuditView: false,
}

var rolePermissionTable = map[models.Role]map[string]bool{
	models.RoleOwner:         ownerPermissions,
	models.RoleAdministrator: administratorPermissions,
	models.RoleManager:       managerPermissions,
	models.RoleEmployee:      employeePermissions,
}

// HasPermission reports whether the role grants the permission key. Unknown
// roles and unknown keys are denied.
func HasPermission(role models.Role, permission string) bool {
	bundle, ok := rolePermissionTable[role]
	if !ok {
		return false
	}
	granted, ok := bundle[permission]
	if !ok {
		return false
	}
	return granted
}

// ValidatePermissionTable checks that every role defines every permission key
// and carries no stray keys. Called once at startup; an error is fatal.
func ValidatePermissionTable() error {
	for _, role := range models.AllRoles() {
		bundle, ok := rolePermissionTable[role]
		if !ok {
			return fmt.Errorf("role %q has no permission bundle", role)
		}
		for _, key := range permissionKeys {
			if _, ok := bundle[key]; !ok {
				return fmt.Errorf("role %q is missing permission key %q", role, key)
			}
		}
		if len(bundle) != len(permissionKeys) {
			for key := range bundle {
				if !knownPermissionKey(key) {
					return fmt.Errorf("role %q defines unknown permission key %q", role, key)
				}
			}
		}
	}
	return nil
}

func knownPermissionKey(key string) bool {
	for _, k := range permissionKeys {
		if k == key {
			return true
		}
	}
	return false
}

// AllPermissionKeys returns a copy of the canonical key list.
func AllPermissionKeys() []string {
	keys := make([]string, len(permissionKeys))
	copy(keys, permissionKeys)
	return keys
}

type RBACService interface {
	HasPermission(role models.Role, permission string) bool
	PermissionsFor(role models.Role) []string
}

type rbacService struct{}

func NewRBACService() RBACService {
	return &rbacService{}
}

func (s *rbacService) HasPermission(role models.Role, permission string) bool {
	return HasPermission(role, permission)
}

// PermissionsFor lists the keys the role is granted, in canonical order.
func (s *rbacService) PermissionsFor(role models.Role) []string {
	bundle, ok := rolePermissionTable[role]
	if !ok {
		return nil
	}
	var perms []string
	for _, key := range permissionKeys {
		if bundle[key] {
			perms = append(perms, key)
		}
	}
	return perms
}
