package browser

// Page-level scripts. Rod calls each with the listed arguments.
const (
	jsActiveElement = `() => {
		const a = document.activeElement;
		return a && a !== document.body ? a : null;
	}`

	jsBlur = `() => {
		if (document.activeElement) document.activeElement.blur();
	}`

	jsClickBody = `() => document.body.click()`

	// (attr) stamps every editor with its CKEditor data.
	jsStampEditors = `(attr) => {
		let n = 0;
		for (const el of document.querySelectorAll('.ck-content')) {
			const ed = el.ckeditorInstance;
			if (ed && typeof ed.getData === 'function') {
				el.setAttribute(attr, ed.getData());
				n++;
			}
		}
		return n;
	}`
)

// Element scripts run with this bound to the element.
const (
	jsTag = `function() { return this.tagName.toLowerCase(); }`

	jsClick = `function() { this.click(); }`

	// (value) writes through the native setter so framework bindings see
	// the change.
	jsSetValue = `function(value) {
		const proto = this.tagName === 'TEXTAREA' ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
		const setter = Object.getOwnPropertyDescriptor(proto, 'value').set;
		setter.call(this, value);
		this.dispatchEvent(new Event('input', { bubbles: true }));
		this.dispatchEvent(new Event('change', { bubbles: true }));
	}`

	// (key, code, keyCode)
	jsPress = `function(key, code, keyCode) {
		const init = { key, code, keyCode, which: keyCode, bubbles: true, cancelable: true };
		this.dispatchEvent(new KeyboardEvent('keydown', init));
		this.dispatchEvent(new KeyboardEvent('keypress', init));
		this.dispatchEvent(new KeyboardEvent('keyup', init));
	}`

	editorLookup = `
		const host = this.closest('.ck-editor__editable') || this.querySelector('.ck-editor__editable') || this;
		const ed = host.ckeditorInstance;`

	// (html)
	jsSetRichText = `function(html) {` + editorLookup + `
		if (ed && typeof ed.setData === 'function') {
			ed.setData(html);
			return 'editor';
		}
		host.innerHTML = html;
		host.dispatchEvent(new Event('input', { bubbles: true }));
		return 'dom';
	}`

	jsRichText = `function() {` + editorLookup + `
		if (ed && typeof ed.getData === 'function') return ed.getData();
		return host.innerHTML;
	}`

	jsSelectAll = `function() {` + editorLookup + `
		if (ed && ed.model) {
			ed.editing.view.focus();
			ed.model.change(w => w.setSelection(ed.model.document.getRoot(), 'in'));
			return true;
		}
		host.focus();
		const range = document.createRange();
		range.selectNodeContents(host);
		const sel = window.getSelection();
		sel.removeAllRanges();
		sel.addRange(range);
		return true;
	}`

	jsApplyBold = `function() {` + editorLookup + `
		if (ed && ed.commands && ed.commands.get('bold')) {
			ed.execute('bold');
			return true;
		}
		return document.execCommand('bold');
	}`
)
