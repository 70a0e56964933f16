package api

import (
	"encoding/json"

	"github.com/tabcell/tabcell/common"
	"github.com/tabcell/tabcell/pkg/cellib"
)

func (s *Api) getJarHandler(body json.RawMessage) (any, error) {
	var m common.InputSessionId
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	id, err := cellib.ParseSessionID(m.SessionId)
	if err != nil {
		return nil, err
	}
	var exported []cellib.ExportedCookie
	err = s.table.View(id, func(sess *cellib.Session) {
		exported = sess.Jar.Export()
	})
	if err != nil {
		return nil, err
	}
	cookies := make([]common.CookieExport, 0, len(exported))
	for _, c := range exported {
		cookies = append(cookies, common.CookieExport{
			Domain:   c.Domain,
			Path:     c.Path,
			Name:     c.Name,
			Value:    c.Value,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
			SameSite: c.SameSite,
			Expiry:   c.Expiry,
		})
	}
	return &common.GetJarResponse{
		SessionId: string(id),
		Cookies:   cookies,
	}, nil
}
