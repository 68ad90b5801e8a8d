// Package email renders the transactional emails of the application and
// delivers them over SMTP.
//
// Templates are embedded html/template files sharing one layout. A Composer
// renders them into Messages with the project name and frontend links filled
// in, and a Sender delivers Messages. When SMTP is not configured the
// DisabledSender is used and every Send returns ErrEmailsDisabled.
package email
