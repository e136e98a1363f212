package browser

import (
	"context"
	"fmt"

	"boardsnap/internal/panel"

	"github.com/go-rod/rod"
	"github.com/ysmood/gson"
)

// panelBinding is the page function the panel buttons call.
const panelBinding = "boardsnapRequest"

const jsPanelMounted = `(id) => !!document.getElementById(id)`

// (id, exportLabel, importLabel, binding)
const jsMountPanel = `(id, exportLabel, importLabel, binding) => {
	if (document.getElementById(id)) return false;
	const ui = document.createElement('div');
	ui.id = id;
	ui.style.cssText = 'position:fixed;top:10px;right:10px;z-index:9999;background:#fff;padding:8px;border:1px solid #ccc;border-radius:4px;display:flex;gap:6px;font-family:sans-serif';

	const call = (payload) => {
		const fn = window[binding];
		if (typeof fn !== 'function') return;
		fn(payload).catch(e => console.warn('boardsnap:', e));
	};

	const exportBtn = document.createElement('button');
	exportBtn.textContent = exportLabel;
	exportBtn.onclick = () => call({ action: 'export' });

	const file = document.createElement('input');
	file.type = 'file';
	file.accept = '.json,application/json';
	file.style.display = 'none';
	file.onchange = () => {
		const f = file.files && file.files[0];
		if (!f) return;
		f.text().then(data => call({ action: 'import', name: f.name, data }));
		file.value = '';
	};

	const importBtn = document.createElement('button');
	importBtn.textContent = importLabel;
	importBtn.onclick = () => file.click();

	ui.append(exportBtn, importBtn, file);
	document.body.appendChild(ui);
	return true;
}`

// (id, level, msg)
const jsShowStatus = `(id, level, msg) => {
	const colors = { info: '#1976d2', success: '#2e7d32', error: '#c62828' };
	let box = document.getElementById(id);
	if (!box) {
		box = document.createElement('div');
		box.id = id;
		box.style.cssText = 'position:fixed;top:60px;right:10px;z-index:9999;color:#fff;padding:8px 12px;border-radius:4px;font-family:sans-serif;max-width:420px';
		document.body.appendChild(box);
	}
	box.style.background = colors[level] || colors.info;
	box.textContent = msg;
	clearTimeout(box._hide);
	box._hide = setTimeout(() => box.remove(), level === 'error' ? 8000 : 4000);
}`

const statusElementID = panel.ElementID + "-status"

// PanelMounted implements panel.Mounter.
func (p *Page) PanelMounted(ctx context.Context) (bool, error) {
	res, err := p.rod.Context(ctx).Evaluate(rod.Eval(jsPanelMounted, panel.ElementID))
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

// MountPanel implements panel.Mounter.
func (p *Page) MountPanel(ctx context.Context) error {
	_, err := p.rod.Context(ctx).Evaluate(rod.Eval(jsMountPanel,
		panel.ElementID, panel.ExportLabel, panel.ImportLabel, panelBinding))
	return err
}

// ShowStatus displays a short status toast on the page.
func (p *Page) ShowStatus(ctx context.Context, level, msg string) error {
	_, err := p.rod.Context(ctx).Evaluate(rod.Eval(jsShowStatus, statusElementID, level, msg))
	return err
}

// PanelRequests exposes the panel binding and returns the stream of button
// presses. Presses arriving while a request is still queued are refused
// with panel.ErrBusy. Call stop to remove the binding.
func (p *Page) PanelRequests(ctx context.Context) (reqs <-chan panel.Request, stop func() error, err error) {
	ch := make(chan panel.Request, 1)
	stop, err = p.rod.Context(ctx).Expose(panelBinding, func(j gson.JSON) (interface{}, error) {
		req, err := decodeRequest(j)
		if err != nil {
			p.log.Warn("panel: %v", err)
			return nil, err
		}
		select {
		case ch <- req:
			return "queued", nil
		default:
			return nil, panel.ErrBusy
		}
	})
	if err != nil {
		return nil, nil, fmt.Errorf("expose %s: %w", panelBinding, err)
	}
	return ch, stop, nil
}

func decodeRequest(j gson.JSON) (panel.Request, error) {
	req := panel.Request{Action: panel.Action(str(j.Get("action")))}
	switch req.Action {
	case panel.ActionExport:
	case panel.ActionImport:
		req.Name = str(j.Get("name"))
		req.Data = []byte(str(j.Get("data")))
		if len(req.Data) == 0 {
			return req, fmt.Errorf("import %q: empty file", req.Name)
		}
	default:
		return req, fmt.Errorf("unknown panel action %q", req.Action)
	}
	return req, nil
}

func str(j gson.JSON) string {
	if j.Nil() {
		return ""
	}
	return j.Str()
}
