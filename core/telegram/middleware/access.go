package middleware

import tele "gopkg.in/telebot.v4"

// AdminOptions configures AdminOnlyMiddleware.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware lets only the configured admin through. With no admin
// configured every sender is rejected.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if u := c.Sender(); opts.AdminID != 0 && u != nil && u.ID == opts.AdminID {
				return next(c)
			}
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
	}
}
