package bridge

// captureScript snapshots the page from inside its own context. The HTML is
// the live DOM, not the original response body, so fields rendered by
// JavaScript are visible to analysis.
const captureScript = `({
	url: window.location.href,
	title: document.title,
	html: document.documentElement.outerHTML,
})`

// fillScriptTemplate fills form fields inside the page. It takes the fields
// as a JSON array injected at the %s. Values are set through the native
// prototype setter and followed by input, change and blur events so that
// framework-controlled inputs (React and friends) pick the value up instead
// of silently reverting it. Elements whose selectors do not resolve are
// skipped, as are fields with no value; a blank value must never clobber
// what the page already holds. Returns the number of fields actually
// written.
const fillScriptTemplate = `(() => {
	const fields = %s;
	let filled = 0;
	for (const f of fields) {
		let el = null;
		if (f.selector) {
			try { el = document.querySelector(f.selector); } catch (e) {}
		}
		if (!el && f.name) {
			el = document.querySelector('[name="' + f.name + '"]') ||
				document.getElementById(f.name) ||
				document.querySelector('input[name*="' + f.name + '" i]');
		}
		if (!el || !f.value) continue;
		const proto = el.tagName === 'TEXTAREA' ? window.HTMLTextAreaElement.prototype :
			el.tagName === 'SELECT' ? window.HTMLSelectElement.prototype :
			window.HTMLInputElement.prototype;
		const desc = Object.getOwnPropertyDescriptor(proto, 'value');
		if (desc && desc.set) {
			desc.set.call(el, f.value);
		} else {
			el.value = f.value;
		}
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		el.dispatchEvent(new Event('blur', { bubbles: true }));
		filled++;
	}
	return filled;
})()`
