// internal/browser/probe.go
package browser

import (
	"encoding/json"
	"fmt"
)

// jsLookup builds the JavaScript expression that resolves a locator to a
// single element (or null).
func jsLookup(loc Locator) string {
	query, _ := json.Marshal(loc.Query)
	if loc.Kind == KindXPath {
		return fmt.Sprintf(
			`document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue`,
			query,
		)
	}
	return fmt.Sprintf(`document.querySelector(%s)`, query)
}

// jsProbe builds the read-only element inspection script. Its result object
// mirrors schemas.ElementProbe field for field.
func jsProbe(loc Locator) string {
	return fmt.Sprintf(`(() => {
	const el = %s;
	if (!el || el.nodeType !== 1) {
		return {exists: false, visible: false, width: 0, height: 0,
			disabled: false, editable: false, hasClickHandler: false, hasTabIndex: false};
	}
	const style = window.getComputedStyle(el);
	const rect = el.getBoundingClientRect();
	const visible = style.display !== 'none' && style.visibility !== 'hidden' &&
		style.opacity !== '0' && rect.width > 0 && rect.height > 0;
	return {
		exists: true,
		visible: visible,
		width: rect.width,
		height: rect.height,
		tag: el.tagName.toLowerCase(),
		inputType: (el.getAttribute('type') || '').toLowerCase(),
		role: (el.getAttribute('role') || '').toLowerCase(),
		disabled: !!el.disabled || el.getAttribute('aria-disabled') === 'true',
		editable: !!el.isContentEditable,
		hasClickHandler: !!el.onclick || el.hasAttribute('onclick'),
		hasTabIndex: el.hasAttribute('tabindex'),
		text: ((el.innerText || el.value || '') + '').trim().slice(0, 128),
	};
})()`, jsLookup(loc))
}

// jsSetValue builds the direct value-assignment script. It goes through the
// prototype setter so framework-managed inputs (React and friends) observe the
// change, then fires input and change events. Returns "ok", "missing" or
// "not-fillable".
func jsSetValue(loc Locator, value string) string {
	quoted, _ := json.Marshal(value)
	return fmt.Sprintf(`(() => {
	const el = %s;
	if (!el || el.nodeType !== 1) { return 'missing'; }
	const tag = el.tagName.toLowerCase();
	if (tag === 'input' || tag === 'textarea' || tag === 'select') {
		const proto = tag === 'input' ? window.HTMLInputElement.prototype
			: (tag === 'textarea' ? window.HTMLTextAreaElement.prototype
			: window.HTMLSelectElement.prototype);
		const desc = Object.getOwnPropertyDescriptor(proto, 'value');
		if (desc && desc.set) { desc.set.call(el, %s); } else { el.value = %s; }
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return 'ok';
	}
	if (el.isContentEditable) {
		el.textContent = %s;
		el.dispatchEvent(new Event('input', {bubbles: true}));
		return 'ok';
	}
	return 'not-fillable';
})()`, jsLookup(loc), quoted, quoted, quoted)
}
